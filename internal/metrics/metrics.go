package metrics

import (
	"time"

	"github.com/shopspring/decimal"
)

// Collector receives ledger metrics. Implementations export them to a
// monitoring backend.
type Collector interface {
	RecordBooked()
	RecordRemoved()
	RecordReplacement(kind string)
	RecordImported(rows int)
	RecordStoreError(op string)
	RecordOperation(op string, duration time.Duration)
	SetBalance(balance decimal.Decimal)
}

// NoOpCollector is used when metrics are not needed.
type NoOpCollector struct{}

func (NoOpCollector) RecordBooked()                                     {}
func (NoOpCollector) RecordRemoved()                                    {}
func (NoOpCollector) RecordReplacement(kind string)                     {}
func (NoOpCollector) RecordImported(rows int)                           {}
func (NoOpCollector) RecordStoreError(op string)                        {}
func (NoOpCollector) RecordOperation(op string, duration time.Duration) {}
func (NoOpCollector) SetBalance(balance decimal.Decimal)                {}
