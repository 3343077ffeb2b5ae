// Package receiptfile loads receipts described in YAML into engine inputs.
//
// A receipt file looks like this:
//
//	name: Friday dinner
//	currency: USD
//	payer: alice
//	participants:
//	  - id: alice
//	    name: Alice
//	  - id: bob
//	    name: Bob
//	items:
//	  - id: pizza
//	    name: Margherita
//	    unit_price: "12.50"
//	    quantity: 2
//	    split:
//	      mode: count
//	      counts: {alice: 1, bob: 1}
//	  - id: promo
//	    name: Happy hour
//	    kind: discount
//	    unit_price: "-5.00"
//	    quantity: 1
//	    split:
//	      everyone: true
package receiptfile

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/mmynk/tabsplit/internal/calculator"
	"github.com/mmynk/tabsplit/internal/money"
	"github.com/mmynk/tabsplit/internal/session"
)

// ErrInvalidReceipt wraps every error caused by the file's content.
var ErrInvalidReceipt = errors.New("invalid receipt file")

// FieldError points at the offending field of a receipt file.
type FieldError struct {
	Path  string
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	where := e.Path
	if where == "" {
		where = "<input>"
	}
	if e.Field != "" {
		where += ": " + e.Field
	}
	return fmt.Sprintf("%s: %v", where, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

func invalidField(path, field string, err error) error {
	return &FieldError{Path: path, Field: field, Err: fmt.Errorf("%w: %w", ErrInvalidReceipt, err)}
}

type yamlReceipt struct {
	Name         string            `yaml:"name"`
	Currency     string            `yaml:"currency" validate:"required,len=3"`
	Payer        string            `yaml:"payer"`
	Participants []yamlParticipant `yaml:"participants" validate:"required,min=1,dive"`
	Items        []yamlItem        `yaml:"items" validate:"dive"`
}

type yamlParticipant struct {
	ID   string `yaml:"id" validate:"required"`
	Name string `yaml:"name"`
}

type yamlItem struct {
	ID        string     `yaml:"id" validate:"required"`
	Name      string     `yaml:"name"`
	Kind      string     `yaml:"kind"`
	UnitPrice string     `yaml:"unit_price" validate:"required,decimal_amount"`
	Quantity  int64      `yaml:"quantity" validate:"gt=0"`
	Total     string     `yaml:"total" validate:"omitempty,decimal_amount"`
	Split     *yamlSplit `yaml:"split"`
}

type yamlSplit struct {
	Mode         string           `yaml:"mode" validate:"omitempty,oneof=equal count"`
	Everyone     bool             `yaml:"everyone"`
	Participants []string         `yaml:"participants"`
	Counts       map[string]int64 `yaml:"counts" validate:"dive,gte=0"`
}

var (
	validate    *validator.Validate
	validateErr error
	once        sync.Once
)

func getValidator() (*validator.Validate, error) {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		validateErr = v.RegisterValidation("decimal_amount", func(fl validator.FieldLevel) bool {
			_, err := decimal.NewFromString(strings.ReplaceAll(fl.Field().String(), ",", ""))
			return err == nil
		})
		validate = v
	})
	return validate, validateErr
}

// Receipt is a loaded receipt file in engine terms.
type Receipt struct {
	Name         string
	Currency     money.Currency
	PayerID      string
	Items        []calculator.LineItem
	Participants []calculator.Participant
	Assignments  map[string]calculator.Assignment
}

// Load reads and parses a receipt file.
func Load(path string) (*Receipt, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt file: %w", err)
	}
	return parse(path, b)
}

// Parse parses receipt YAML held in memory.
func Parse(data []byte) (*Receipt, error) {
	return parse("", data)
}

func parse(path string, data []byte) (*Receipt, error) {
	var yr yamlReceipt
	if err := yaml.Unmarshal(data, &yr); err != nil {
		return nil, invalidField(path, "", err)
	}

	v, err := getValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize validator: %w", err)
	}
	if err := v.Struct(yr); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, invalidField(path, trimNamespace(fe.Namespace()),
				fmt.Errorf("failed %q check", fe.Tag()))
		}
		return nil, invalidField(path, "", err)
	}

	return mapReceipt(path, yr)
}

// trimNamespace drops the root struct name from a validator namespace.
func trimNamespace(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func mapReceipt(path string, yr yamlReceipt) (*Receipt, error) {
	currency, err := money.Lookup(yr.Currency)
	if err != nil {
		return nil, invalidField(path, "currency", err)
	}

	r := &Receipt{
		Name:         yr.Name,
		Currency:     currency,
		PayerID:      yr.Payer,
		Items:        make([]calculator.LineItem, 0, len(yr.Items)),
		Participants: make([]calculator.Participant, 0, len(yr.Participants)),
		Assignments:  make(map[string]calculator.Assignment, len(yr.Items)),
	}

	everyone := make([]string, 0, len(yr.Participants))
	for _, p := range yr.Participants {
		name := p.Name
		if strings.TrimSpace(name) == "" {
			name = p.ID
		}
		r.Participants = append(r.Participants, calculator.Participant{ID: p.ID, Name: name})
		everyone = append(everyone, p.ID)
	}

	for i, yi := range yr.Items {
		field := fmt.Sprintf("items[%d]", i)

		item, err := mapItem(yi, currency)
		if err != nil {
			return nil, invalidField(path, field, err)
		}
		if err := item.Validate(); err != nil {
			return nil, invalidField(path, field, err)
		}
		r.Items = append(r.Items, item)

		if yi.Split != nil {
			r.Assignments[item.ID] = mapSplit(*yi.Split, item, everyone)
		}
	}

	if r.PayerID != "" && !contains(everyone, r.PayerID) {
		return nil, invalidField(path, "payer", fmt.Errorf("%q is not a participant", r.PayerID))
	}
	return r, nil
}

func mapItem(yi yamlItem, currency money.Currency) (calculator.LineItem, error) {
	unit, err := money.ParseMinor(yi.UnitPrice, currency)
	if err != nil {
		return calculator.LineItem{}, fmt.Errorf("unit_price: %w", err)
	}

	item := calculator.LineItem{
		ID:        yi.ID,
		Name:      yi.Name,
		UnitPrice: unit,
		Quantity:  yi.Quantity,
		Kind:      calculator.ItemKind(strings.ToLower(strings.TrimSpace(yi.Kind))),
	}
	if item.Name == "" {
		item.Name = item.ID
	}

	if yi.Total != "" {
		if item.TotalPrice, err = money.ParseMinor(yi.Total, currency); err != nil {
			return calculator.LineItem{}, fmt.Errorf("total: %w", err)
		}
		return item, nil
	}

	total := money.ToDecimal(unit, currency).Mul(decimal.NewFromInt(yi.Quantity))
	if item.TotalPrice, err = money.ParseMinor(total.String(), currency); err != nil {
		return calculator.LineItem{}, fmt.Errorf("total: %w", err)
	}
	return item, nil
}

func mapSplit(ys yamlSplit, item calculator.LineItem, everyone []string) calculator.Assignment {
	switch {
	case ys.Everyone:
		return calculator.EqualSplit(everyone...)
	case ys.Mode == string(calculator.SplitCount) || (ys.Mode == "" && len(ys.Counts) > 0):
		return calculator.CountSplit(ys.Counts)
	case ys.Mode == string(calculator.SplitEqual) || len(ys.Participants) > 0:
		return calculator.EqualSplit(ys.Participants...)
	default:
		return calculator.Assignment{Mode: session.DefaultMode(item)}
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Draft builds an editing session from the receipt, applying the splits the
// file declares on top of the per-item defaults.
func (r *Receipt) Draft() (session.Draft, error) {
	d := session.NewDraft(r.Items, r.Participants)
	for _, item := range r.Items {
		a, ok := r.Assignments[item.ID]
		if !ok || a.IsEmpty() {
			continue
		}

		var err error
		switch a.Mode {
		case calculator.SplitCount:
			d, err = d.AssignCounts(item.ID, a.Counts)
		default:
			d, err = d.AssignEqual(item.ID, a.Participants...)
		}
		if err != nil {
			return session.Draft{}, err
		}
	}
	return d, nil
}
