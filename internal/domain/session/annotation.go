package session

// QuestionKey names one of the six fixed investigation questions.
type QuestionKey string

const (
	WasSold                 QuestionKey = "wasSold"
	HasExpired              QuestionKey = "hasExpired"
	InSalesArea             QuestionKey = "inSalesArea"
	IsOnOffer               QuestionKey = "isOnOffer"
	WasMarkedDown           QuestionKey = "wasMarkedDown"
	WasRemovedFromSalesArea QuestionKey = "wasRemovedFromSalesArea"
)

// Question carries every label a question is rendered with.
type Question struct {
	Key QuestionKey
	// Prompt is the full question asked in the field.
	Prompt string
	// Finding is the conclusion label used in the final report.
	Finding string
	// ShortFinding is the conclusion label used in share text.
	ShortFinding string
	// Check is the checklist label used in the field share text.
	Check string
}

// Questions in their fixed order. Every renderer iterates this slice.
var Questions = []Question{
	{WasSold, "O produto foi vendido?", "Foi Vendido", "Foi Vendido", "Vendido?"},
	{HasExpired, "O produto venceu?", "Está Vencido", "Está Vencido", "Venceu?"},
	{InSalesArea, "Produto se encontra na area de venda?", "Está na Área de Venda", "Está na Loja", "Na Loja?"},
	{IsOnOffer, "O produto esta em oferta?", "Está em Oferta", "Está em Oferta", "Em Oferta?"},
	{WasMarkedDown, "Foi feita a rebaixa?", "Foi Rebaixado", "Foi Rebaixado", "Rebaixado?"},
	{WasRemovedFromSalesArea, "O produto foi retirado da area de venda?", "Retirado da Área", "Retirado da Área", "Retirado?"},
}

// ValidQuestion reports whether k is one of the six keys.
func ValidQuestion(k QuestionKey) bool {
	for _, q := range Questions {
		if q.Key == k {
			return true
		}
	}
	return false
}

// Note is one of the fixed observation tags.
type Note string

const (
	NoteNotRelated Note = "Produto nao foi relacionado verificar."
	NoteWeight     Note = "Produto com Inconsistência no peso ( kg )"
	NoteDate       Note = "produto com inconsistência na data."
	NoteDateWeight Note = "produto com inconsistência na data e kg."
)

// Notes in display order.
var Notes = []Note{NoteNotRelated, NoteWeight, NoteDate, NoteDateWeight}

// Compact is the short form used in exports.
func (n Note) Compact() string {
	switch n {
	case NoteWeight:
		return "Inconsistência Peso (KG)"
	case NoteDate:
		return "Inconsistência Data"
	case NoteDateWeight:
		return "Inconsistência Data e Peso"
	case NoteNotRelated:
		return "Não Relacionado"
	}
	return string(n)
}

// Valid reports whether n is one of the fixed tags.
func (n Note) Valid() bool {
	for _, v := range Notes {
		if v == n {
			return true
		}
	}
	return false
}

// Answers holds the tri-state answers; a missing key means unanswered.
type Answers map[QuestionKey]bool

// Annotation is the investigation state of one detail. The zero value means
// nothing answered, selected or noted.
type Annotation struct {
	Answers   Answers              `json:"answers,omitempty"`
	Questions map[QuestionKey]bool `json:"selectedQuestions,omitempty"`
	Notes     map[Note]bool        `json:"notes,omitempty"`
}

// Answer returns the answer for k and whether it was given.
func (a Annotation) Answer(k QuestionKey) (value, answered bool) {
	value, answered = a.Answers[k]
	return value, answered
}

// Answered reports whether at least one question has an answer.
func (a Annotation) Answered() bool {
	return len(a.Answers) > 0
}

// SelectedQuestions returns the in-scope questions in fixed order.
func (a Annotation) SelectedQuestions() []Question {
	var out []Question
	for _, q := range Questions {
		if a.Questions[q.Key] {
			out = append(out, q)
		}
	}
	return out
}

// SelectedNotes returns the tags in fixed order.
func (a Annotation) SelectedNotes() []Note {
	var out []Note
	for _, n := range Notes {
		if a.Notes[n] {
			out = append(out, n)
		}
	}
	return out
}

// Conclusion lists the questions answered yes that are also in scope, in fixed
// order. Unanswered, unselected and "no" answers never appear.
func (a Annotation) Conclusion() []Question {
	var out []Question
	for _, q := range Questions {
		if a.Questions[q.Key] && a.Answers[q.Key] {
			out = append(out, q)
		}
	}
	return out
}

func (a Annotation) clone() Annotation {
	c := Annotation{}
	if len(a.Answers) > 0 {
		c.Answers = make(Answers, len(a.Answers))
		for k, v := range a.Answers {
			c.Answers[k] = v
		}
	}
	if len(a.Questions) > 0 {
		c.Questions = make(map[QuestionKey]bool, len(a.Questions))
		for k, v := range a.Questions {
			c.Questions[k] = v
		}
	}
	if len(a.Notes) > 0 {
		c.Notes = make(map[Note]bool, len(a.Notes))
		for k, v := range a.Notes {
			c.Notes[k] = v
		}
	}
	return c
}

func (a Annotation) withAnswer(k QuestionKey, v *bool) Annotation {
	c := a.clone()
	if v == nil {
		delete(c.Answers, k)
		return c
	}
	if c.Answers == nil {
		c.Answers = Answers{}
	}
	c.Answers[k] = *v
	return c
}

func (a Annotation) withQuestionToggled(k QuestionKey) Annotation {
	c := a.clone()
	if c.Questions[k] {
		delete(c.Questions, k)
		return c
	}
	if c.Questions == nil {
		c.Questions = map[QuestionKey]bool{}
	}
	c.Questions[k] = true
	return c
}

func (a Annotation) withAllQuestionsToggled() Annotation {
	c := a.clone()
	if len(c.SelectedQuestions()) == len(Questions) {
		c.Questions = nil
		return c
	}
	c.Questions = make(map[QuestionKey]bool, len(Questions))
	for _, q := range Questions {
		c.Questions[q.Key] = true
	}
	return c
}

func (a Annotation) withNoteToggled(n Note) Annotation {
	c := a.clone()
	if c.Notes[n] {
		delete(c.Notes, n)
		return c
	}
	if c.Notes == nil {
		c.Notes = map[Note]bool{}
	}
	c.Notes[n] = true
	return c
}
