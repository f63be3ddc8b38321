// Package statusmap translates PagSeguro transaction status codes into local order statuses.
package statusmap

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/pagseguro-reconciler/internal/domain/order"
	"github.com/pagseguro-reconciler/internal/domain/payment"
	"gopkg.in/yaml.v3"
)

// Table is a fixed lookup from provider status codes to local statuses.
// Map is total: codes missing from the table resolve to order.StatusUnrecognized.
type Table struct {
	statuses map[payment.StatusCode]order.Status
}

type fileFormat struct {
	Statuses map[int]string `yaml:"statuses"`
}

// Default returns the table shipped with the module
func Default() *Table {
	return &Table{statuses: map[payment.StatusCode]order.Status{
		payment.StatusAwaitingPayment:   order.StatusPending,
		payment.StatusInAnalysis:        order.StatusInReview,
		payment.StatusPaid:              order.StatusPaid,
		payment.StatusAvailable:         order.StatusAvailable,
		payment.StatusInDispute:         order.StatusInDispute,
		payment.StatusReturned:          order.StatusRefunded,
		payment.StatusCancelled:         order.StatusCancelled,
		payment.StatusChargebackDebited: order.StatusChargebackDebited,
		payment.StatusTemporaryRetained: order.StatusContested,
	}}
}

// New builds a table from explicit pairs
func New(statuses map[payment.StatusCode]order.Status) (*Table, error) {
	t := &Table{statuses: make(map[payment.StatusCode]order.Status, len(statuses))}
	for code, status := range statuses {
		if status == "" || status == order.StatusUnrecognized {
			return nil, fmt.Errorf("status code %d: %q is not a valid local status", code, status)
		}
		t.statuses[code] = status
	}
	return t, nil
}

// Parse reads a YAML document of the form `statuses: {1: pending, 3: paid}`
func Parse(data []byte) (*Table, error) {
	var doc fileFormat
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse status map: %w", err)
	}
	if len(doc.Statuses) == 0 {
		return nil, errors.New("status map has no statuses")
	}

	statuses := make(map[payment.StatusCode]order.Status, len(doc.Statuses))
	for code, status := range doc.Statuses {
		statuses[payment.StatusCode(code)] = order.Status(status)
	}
	return New(statuses)
}

// Load reads the table from path. An empty path yields the default table.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read status map %s: %w", path, err)
	}
	return Parse(data)
}

// Map translates a provider status code
func (t *Table) Map(code payment.StatusCode) order.Status {
	if status, ok := t.statuses[code]; ok {
		return status
	}
	return order.StatusUnrecognized
}

// Codes lists the mapped provider codes in ascending order
func (t *Table) Codes() []payment.StatusCode {
	codes := make([]payment.StatusCode, 0, len(t.statuses))
	for code := range t.statuses {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}
