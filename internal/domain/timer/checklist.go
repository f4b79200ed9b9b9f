package timer

// Checklist items reviewed during a meeting.
const (
	ItemFormsExchanged = "forms_exchanged"
	ItemIdealClient    = "ideal_client"
	ItemReferralAction = "referral_action"
)

// ChecklistLabels holds the text shown for each item.
var ChecklistLabels = map[string]string{
	ItemFormsExchanged: "Scambiato i moduli?",
	ItemIdealClient:    "Spiegato il tipo di cliente ideale che si sta cercando?",
	ItemReferralAction: "Decisa una azione di uscita o da fare per costruire una referenza?",
}

// Checklist maps item keys to their checked state.
type Checklist map[string]bool

// NewChecklist returns a checklist with every item unchecked.
func NewChecklist() Checklist {
	c := make(Checklist, len(ChecklistLabels))
	for k := range ChecklistLabels {
		c[k] = false
	}
	return c
}

// Toggle flips item and returns its new value.
func (c Checklist) Toggle(item string) (bool, error) {
	if _, ok := ChecklistLabels[item]; !ok {
		return false, ErrUnknownItem
	}
	c[item] = !c[item]
	return c[item], nil
}

// Clone returns a copy safe to hand out.
func (c Checklist) Clone() Checklist {
	out := make(Checklist, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
