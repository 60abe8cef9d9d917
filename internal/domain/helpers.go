package domain

// UniformType reports the single fruit type a hand consists of. A hand is
// winning when it is non-empty and every card shares one type.
func UniformType(hand []Card) (string, bool) {
	if len(hand) == 0 {
		return "", false
	}
	t := hand[0].Type
	for _, c := range hand[1:] {
		if c.Type != t {
			return "", false
		}
	}
	return t, true
}

// RemoveCardByID removes the card with the given id from a hand, preserving
// the order of the remaining cards. The removed card is returned alongside
// whether it was found.
func RemoveCardByID(hand []Card, cardID string) ([]Card, Card, bool) {
	for i, c := range hand {
		if c.ID == cardID {
			out := make([]Card, 0, len(hand)-1)
			out = append(out, hand[:i]...)
			out = append(out, hand[i+1:]...)
			return out, c, true
		}
	}
	return hand, Card{}, false
}

// LabelPayload produces the values advertised in the match label.
type LabelPayload struct {
	Open    bool   `json:"open"`
	Game    string `json:"game"`
	Phase   string `json:"phase"`
	Code    string `json:"code"`
	Players int    `json:"players"`
}

// ComputeLabel derives the advertised label from room state. maxPlayers caps
// when the room still accepts joins.
func ComputeLabel(r *Room, maxPlayers int) LabelPayload {
	return LabelPayload{
		Open:    len(r.Players) < maxPlayers,
		Game:    "fruitpass",
		Phase:   string(r.Phase),
		Code:    r.Code,
		Players: len(r.Players),
	}
}
