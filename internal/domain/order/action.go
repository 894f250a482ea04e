package order

// ActionKind tags a lifecycle action a shopper can take on an order.
type ActionKind string

const (
	ActionNone     ActionKind = "none"
	ActionReview   ActionKind = "review"
	ActionExchange ActionKind = "exchange"
	ActionReturn   ActionKind = "return"
	ActionCancel   ActionKind = "cancel"
	ActionTrack    ActionKind = "track"
)

// Action is a labelled lifecycle action.
type Action struct {
	Label string
	Kind  ActionKind
}

var (
	noAction       = Action{Kind: ActionNone}
	reviewAction   = Action{Label: "Write a Review", Kind: ActionReview}
	exchangeAction = Action{Label: "Exchange Item", Kind: ActionExchange}
	returnAction   = Action{Label: "Return Item", Kind: ActionReturn}
	cancelAction   = Action{Label: "Cancel Order", Kind: ActionCancel}
	trackAction    = Action{Label: "Track Order", Kind: ActionTrack}
)

// AvailableActions lists every action the order's status permits, highest
// precedence first: delivered-state actions, then cancel, then track.
func AvailableActions(o Order) []Action {
	s := o.Status
	var out []Action
	if s == StatusDelivered {
		out = append(out, reviewAction)
	}
	if s.CanExchange() {
		out = append(out, exchangeAction)
	}
	if s.CanReturn() {
		out = append(out, returnAction)
	}
	if s.CanCancel() {
		out = append(out, cancelAction)
	}
	if s.CanTrack() {
		out = append(out, trackAction)
	}
	return out
}

// ResolveAction returns the single primary action for the order. Terminal
// and unrecognized statuses resolve to ActionNone.
func ResolveAction(o Order) Action {
	actions := AvailableActions(o)
	if len(actions) == 0 {
		return noAction
	}
	return actions[0]
}
