package session

import (
	"sync"
	"testing"
)

func TestStoreSetGetClear(t *testing.T) {
	s := NewStore()

	if _, ok := s.Get(1); ok {
		t.Fatal("ожидалось пустое состояние для нового пользователя")
	}

	s.Set(1, StepCategoryName, CategoryAdd{})
	st, ok := s.Get(1)
	if !ok {
		t.Fatal("состояние не найдено после Set")
	}
	if st.Step != StepCategoryName {
		t.Fatalf("неверный шаг: %q", st.Step)
	}

	s.Clear(1)
	if _, ok := s.Get(1); ok {
		t.Fatal("состояние не сброшено после Clear")
	}
}

func TestStorePayloadRoundTrip(t *testing.T) {
	s := NewStore()
	walk := int64(7)
	s.Set(42, StepProductCategory, ProductAdd{Name: "Книга", WalkAt: &walk})

	st, ok := s.Get(42)
	if !ok {
		t.Fatal("состояние не найдено")
	}
	data, ok := st.Payload.(ProductAdd)
	if !ok {
		t.Fatalf("неверный тип полезной нагрузки: %T", st.Payload)
	}
	if data.Name != "Книга" || data.WalkAt == nil || *data.WalkAt != 7 {
		t.Fatalf("полезная нагрузка искажена: %+v", data)
	}
}

func TestStoreSetOverwritesPreviousStep(t *testing.T) {
	s := NewStore()
	s.Set(5, StepProductName, ProductAdd{})
	s.Set(5, StepProductPrice, ProductAdd{Name: "Курс"})

	st, _ := s.Get(5)
	if st.Step != StepProductPrice {
		t.Fatalf("ожидался шаг цены, получен %q", st.Step)
	}
	data := st.Payload.(ProductAdd)
	if data.Name != "Курс" {
		t.Fatalf("имя товара потеряно: %+v", data)
	}
}

func TestStoreIsolatesUsers(t *testing.T) {
	s := NewStore()
	s.Set(1, StepCouponCode, Checkout{})
	s.Set(2, StepNotifyText, Notify{Segment: "all"})

	st1, _ := s.Get(1)
	st2, _ := s.Get(2)
	if st1.Step == st2.Step {
		t.Fatal("состояния пользователей перемешаны")
	}

	s.Clear(1)
	if _, ok := s.Get(2); !ok {
		t.Fatal("Clear одного пользователя затронул другого")
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			s.Set(id, StepPointsAmount, PointsAdjust{UserID: id})
			if st, ok := s.Get(id); !ok || st.Payload.(PointsAdjust).UserID != id {
				t.Errorf("потеряно состояние пользователя %d", id)
			}
			s.Clear(id)
		}(int64(i))
	}
	wg.Wait()
}
