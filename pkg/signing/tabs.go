package signing

import (
	"math"
	"strings"
)

// SlotPolicy decides where signers beyond the last placement go.
type SlotPolicy string

const (
	// SlotReuse stacks every extra signer on the last placement.
	SlotReuse SlotPolicy = "reuse"
	// SlotWrap cycles through the placements again, one row further down each time.
	SlotWrap SlotPolicy = "wrap"
)

// Tab offsets in provider units. Positive y runs down the page.
const (
	NameOffsetX     = 20
	NameOffsetY     = -30
	FieldSpacingY   = 30
	WrapRowSpacingY = 100
	TextTabWidth    = 200
)

// SlotIndex is the placement used by signer i (0-based) under the reuse policy.
func SlotIndex(i, slots int) int {
	return min(i, slots-1)
}

// placementFor returns the placement for signer i under policy.
func placementFor(i int, placements []Placement, policy SlotPolicy) Placement {
	n := len(placements)
	if policy != SlotWrap || i < n {
		return placements[SlotIndex(i, n)]
	}
	p := placements[i%n]
	p.Position.Y += float64(i/n) * WrapRowSpacingY
	return p
}

// Assign numbers signers from 1 in order and builds their tabs. An empty
// placements slice means the default slots.
func Assign(signers []Signer, placements []Placement, policy SlotPolicy) []Assignment {
	if len(placements) == 0 {
		placements = DefaultPlacements()
	}
	out := make([]Assignment, 0, len(signers))
	for i, s := range signers {
		p := placementFor(i, placements, policy)
		out = append(out, buildAssignment(i+1, s, p))
	}
	return out
}

func buildAssignment(recipientID int, s Signer, p Placement) Assignment {
	pos := p.Position
	if pos.Page < 1 {
		pos.Page = 1
	}
	a := Assignment{
		Email:        s.Email,
		Name:         s.Name,
		RecipientID:  recipientID,
		RoutingOrder: recipientID,
		Position:     pos,
		SignHere: SignHereTab{
			Page: pos.Page,
			X:    floor(pos.X),
			Y:    floor(pos.Y),
		},
		NameTab: TextTab{
			Page:  pos.Page,
			X:     floor(pos.X + NameOffsetX),
			Y:     floor(pos.Y + NameOffsetY),
			Value: s.Name,
		},
		AdditionalTabs: make([]TextTab, 0, len(p.AdditionalFields)),
	}
	for k, field := range p.AdditionalFields {
		a.AdditionalTabs = append(a.AdditionalTabs, TextTab{
			Page:  pos.Page,
			X:     floor(pos.X),
			Y:     floor(pos.Y + float64((k+1)*FieldSpacingY)),
			Label: strings.ToLower(field),
			Width: TextTabWidth,
		})
	}
	return a
}

func floor(v float64) int {
	return int(math.Floor(v))
}
