// Package dialog реализует диалоговый слой чат-магазина: разбор действий
// пользователя, многошаговые сценарии и построение ответных представлений.
package dialog

// Action описывает кнопку ответного сообщения.
type Action struct {
	Label string `json:"label"`
	Token string `json:"action"`
}

// View описывает ответ пользователю: текст и набор кнопок. EndOfFlow
// отмечает, что многошаговый сценарий завершён или отменён.
type View struct {
	Text      string   `json:"text"`
	Actions   []Action `json:"actions,omitempty"`
	EndOfFlow bool     `json:"end_of_flow"`
}

func textView(text string, actions ...Action) *View {
	return &View{Text: text, Actions: actions}
}

func textViewWithActions(text string, actions []Action) *View {
	return &View{Text: text, Actions: actions}
}

func doneView(text string, actions ...Action) *View {
	return &View{Text: text, Actions: actions, EndOfFlow: true}
}
