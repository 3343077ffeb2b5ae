package service

import (
	"errors"
	"fmt"

	"github.com/mmynk/tabsplit/internal/calculator"
	"github.com/mmynk/tabsplit/internal/models"
	"github.com/mmynk/tabsplit/internal/money"
	"github.com/mmynk/tabsplit/internal/session"
	"github.com/mmynk/tabsplit/pkg/api"
)

// receiptInput is a request receipt converted to engine types.
type receiptInput struct {
	items        []calculator.LineItem
	participants []calculator.Participant
	assignments  map[string]calculator.Assignment
}

func fromAPIReceipt(r api.Receipt) (receiptInput, error) {
	in := receiptInput{
		items:        make([]calculator.LineItem, len(r.Items)),
		participants: make([]calculator.Participant, len(r.Participants)),
		assignments:  make(map[string]calculator.Assignment, len(r.Assignments)),
	}
	for i, item := range r.Items {
		in.items[i] = calculator.LineItem{
			ID:         item.ID,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
			TotalPrice: item.TotalPrice,
			Kind:       calculator.ItemKind(item.Kind),
		}
	}
	for i, p := range r.Participants {
		in.participants[i] = calculator.Participant{ID: p.UniqueID, Name: p.Username}
	}
	for _, a := range r.Assignments {
		if _, dup := in.assignments[a.ItemID]; dup {
			return receiptInput{}, fmt.Errorf("%w: duplicate assignment for item %q", calculator.ErrInvalidAssignment, a.ItemID)
		}
		in.assignments[a.ItemID] = fromAPIAssignment(a)
	}
	return in, nil
}

func fromAPIAssignment(a api.ItemAssignment) calculator.Assignment {
	switch calculator.SplitMode(a.Mode) {
	case calculator.SplitCount:
		return calculator.CountSplit(a.Counts)
	case calculator.SplitEqual, "":
		return calculator.EqualSplit(a.ParticipantIDs...)
	default:
		return calculator.Assignment{Mode: calculator.SplitMode(a.Mode)}
	}
}

// draft builds an editing session from the input. Items without an
// assignment keep their default mode. Edits that cannot be applied are
// returned as joined *session.Issue errors alongside the partial draft.
func (in receiptInput) draft() (session.Draft, error) {
	d := session.NewDraft(in.items, in.participants)

	var issues []error
	known := make(map[string]bool, len(in.items))
	for _, item := range in.items {
		known[item.ID] = true
		a, ok := in.assignments[item.ID]
		if !ok {
			continue
		}
		var err error
		switch a.Mode {
		case calculator.SplitCount:
			d, err = d.AssignCounts(item.ID, a.Counts)
		case calculator.SplitEqual:
			d, err = d.AssignEqual(item.ID, a.Participants...)
		default:
			err = &session.Issue{ItemID: item.ID, Err: fmt.Errorf("%w: unknown split mode %q", calculator.ErrInvalidAssignment, a.Mode)}
		}
		if err != nil {
			issues = append(issues, err)
		}
	}
	for itemID := range in.assignments {
		if !known[itemID] {
			issues = append(issues, &session.Issue{ItemID: itemID, Err: session.ErrUnknownItem})
		}
	}
	return d, errors.Join(issues...)
}

func toAPIItems(items []calculator.LineItem) []api.LineItem {
	out := make([]api.LineItem, len(items))
	for i, item := range items {
		out[i] = api.LineItem{
			ID:         item.ID,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
			TotalPrice: item.TotalPrice,
			Kind:       string(item.Kind),
		}
	}
	return out
}

func toAPIParticipants(participants []calculator.Participant) []api.Participant {
	out := make([]api.Participant, len(participants))
	for i, p := range participants {
		out[i] = api.Participant{UniqueID: p.ID, Username: p.Name}
	}
	return out
}

func fromAPIParticipants(participants []api.Participant) []calculator.Participant {
	out := make([]calculator.Participant, len(participants))
	for i, p := range participants {
		out[i] = calculator.Participant{ID: p.UniqueID, Name: p.Username}
	}
	return out
}

// toAPIAssignments lists assignments in item order.
func toAPIAssignments(items []calculator.LineItem, assignments map[string]calculator.Assignment) []api.ItemAssignment {
	out := make([]api.ItemAssignment, 0, len(assignments))
	for _, item := range items {
		a, ok := assignments[item.ID]
		if !ok {
			continue
		}
		entry := api.ItemAssignment{ItemID: item.ID, Mode: string(a.Mode)}
		if a.Mode == calculator.SplitCount {
			entry.Counts = a.Counts
		} else {
			entry.ParticipantIDs = a.ParticipantIDs()
		}
		out = append(out, entry)
	}
	return out
}

// toAPITotals flattens a result. currency may be the zero Currency, in which
// case no display strings are set.
func toAPITotals(result *calculator.AllocationResult, currency money.Currency) (api.Totals, []api.Allocation) {
	totals := api.Totals{
		GrandTotal:    result.GrandTotal,
		ByParticipant: make([]api.ParticipantTotal, len(result.Participants)),
		ByItem:        make([]api.ItemTotal, len(result.Items)),
	}
	for i, p := range result.Participants {
		totals.ByParticipant[i] = api.ParticipantTotal{
			UniqueID:   p.ParticipantID,
			Username:   p.Name,
			AmountOwed: p.Amount,
		}
		if currency.Code != "" {
			totals.ByParticipant[i].Display = money.Format(p.Amount, currency)
		}
	}

	allocations := []api.Allocation{}
	for i, it := range result.Items {
		totals.ByItem[i] = api.ItemTotal{
			ItemID: it.ItemID,
			Name:   it.Name,
			Kind:   string(it.Kind),
			Mode:   string(it.Mode),
			Total:  it.Total,
		}
		for _, share := range it.Shares {
			allocations = append(allocations, api.Allocation{
				ItemID:        it.ItemID,
				ParticipantID: share.ParticipantID,
				ShareAmount:   share.Amount,
				ShareUnits:    share.Units,
				ShareBasis:    it.Basis,
			})
		}
	}
	return totals, allocations
}

func toAPISession(f *session.Finalized) api.Session {
	currency, _ := money.Lookup(f.Currency)
	totals, allocations := toAPITotals(f.Result, currency)
	return api.Session{
		ID:           f.ID,
		Name:         f.Name,
		Currency:     f.Currency,
		PayerID:      f.PayerID,
		GroupID:      f.GroupID,
		InputDigest:  f.InputDigest,
		FinalizedAt:  f.FinalizedAt.Unix(),
		Items:        toAPIItems(f.Items),
		Participants: toAPIParticipants(f.Participants),
		Assignments:  toAPIAssignments(f.Items, f.Assignments),
		Totals:       totals,
		Allocations:  allocations,
	}
}

func toAPISummaries(summaries []*models.SessionSummary) []api.SessionSummary {
	out := make([]api.SessionSummary, len(summaries))
	for i, s := range summaries {
		out[i] = api.SessionSummary{
			ID:               s.ID,
			Name:             s.Name,
			Slug:             s.Slug,
			Currency:         s.Currency,
			GroupID:          s.GroupID,
			PayerID:          s.PayerID,
			GrandTotal:       s.GrandTotal,
			ParticipantCount: int32(s.ParticipantCount),
			FinalizedAt:      s.FinalizedAt,
		}
	}
	return out
}

func toAPIIssues(issues []*session.Issue) []api.Issue {
	out := make([]api.Issue, len(issues))
	for i, issue := range issues {
		out[i] = api.Issue{
			ItemID:        issue.ItemID,
			ParticipantID: issue.ParticipantID,
			Kind:          issue.Kind(),
			Message:       issue.Error(),
		}
	}
	return out
}

func toAPIGroup(g *models.Group) api.Group {
	return api.Group{
		ID:        g.ID,
		Name:      g.Name,
		Currency:  g.Currency,
		Members:   toAPIParticipants(g.Members),
		CreatedAt: g.CreatedAt,
	}
}

func toAPISettlement(s *models.Settlement) api.Settlement {
	return api.Settlement{
		ID:        s.ID,
		GroupID:   s.GroupID,
		FromID:    s.FromID,
		ToID:      s.ToID,
		Amount:    s.Amount,
		Currency:  s.Currency,
		CreatedAt: s.CreatedAt,
		Note:      s.Note,
	}
}
