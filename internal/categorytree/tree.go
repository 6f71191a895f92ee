// Package categorytree содержит чистые операции над деревом категорий:
// выбор прямых потомков, итеративное замыкание поддерева и путь до корня.
// Пакет не зависит от хранилища и работает со срезом узлов целиком.
package categorytree

import (
	"errors"
	"sort"

	"github.com/avasiliev/chatshop-system/internal/model"
)

// ErrNodeNotFound возвращается, если узел с указанным идентификатором отсутствует.
var ErrNodeNotFound = errors.New("category node not found")

// ErrCycleDetected возвращается, если родительская связь образует цикл.
var ErrCycleDetected = errors.New("category tree contains a cycle")

// Children возвращает прямых потомков узла parentID (nil — корневой уровень),
// упорядоченных по имени.
func Children(nodes []model.Category, parentID *int64) []model.Category {
	var res []model.Category
	for _, n := range nodes {
		if sameParent(n.ParentID, parentID) {
			res = append(res, n)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Name == res[j].Name {
			return res[i].ID < res[j].ID
		}
		return res[i].Name < res[j].Name
	})
	return res
}

// Descendants возвращает идентификаторы всех узлов поддерева с корнем rootID,
// включая сам корень. Обход итеративный, через рабочий список, поэтому глубина
// дерева ограничена только памятью. Каждый узел попадает в результат не более
// одного раза даже при повреждённых связях.
func Descendants(nodes []model.Category, rootID int64) ([]int64, error) {
	byParent := make(map[int64][]int64, len(nodes))
	known := make(map[int64]bool, len(nodes))
	for _, n := range nodes {
		known[n.ID] = true
		if n.ParentID != nil {
			byParent[*n.ParentID] = append(byParent[*n.ParentID], n.ID)
		}
	}
	if !known[rootID] {
		return nil, ErrNodeNotFound
	}

	collected := []int64{rootID}
	seen := map[int64]bool{rootID: true}
	worklist := []int64{rootID}

	for len(worklist) > 0 {
		id := worklist[0]
		worklist = worklist[1:]
		for _, child := range byParent[id] {
			if seen[child] {
				continue
			}
			seen[child] = true
			collected = append(collected, child)
			worklist = append(worklist, child)
		}
	}

	return collected, nil
}

// PathToRoot возвращает цепочку узлов от указанного узла до корня включительно.
// Подъём итеративный с защитой от циклов.
func PathToRoot(nodes []model.Category, id int64) ([]model.Category, error) {
	byID := make(map[int64]model.Category, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	var path []model.Category
	visited := make(map[int64]bool)

	cur, ok := byID[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	for {
		if visited[cur.ID] {
			return nil, ErrCycleDetected
		}
		visited[cur.ID] = true
		path = append(path, cur)

		if cur.ParentID == nil {
			return path, nil
		}
		next, ok := byID[*cur.ParentID]
		if !ok {
			// Родитель потерян — считаем текущий узел корнем.
			return path, nil
		}
		cur = next
	}
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
