package orders

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type capture struct {
	mu   sync.Mutex
	msgs []kafkago.Message
}

func (c *capture) Publish(key, value []byte, headers ...kafkago.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, kafkago.Message{Key: key, Value: value, Headers: headers})
}

func (c *capture) envelopes(t *testing.T) []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Envelope, 0, len(c.msgs))
	for _, m := range c.msgs {
		var env Envelope
		require.NoError(t, json.Unmarshal(m.Value, &env))
		out = append(out, env)
	}
	return out
}

type ManagerSuite struct {
	suite.Suite
	store   *memStore
	placed  *capture
	changed *capture
	mgr     *Manager
	ctx     context.Context
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = newMemStore(
		catalog.Product{ID: "tee", Name: "Tee", Sizes: []catalog.SizeStock{{Size: "M", Stock: 5}, {Size: "L", Stock: 2}}},
		catalog.Product{ID: "cap", Name: "Cap", Sizes: []catalog.SizeStock{{Size: "OS", Stock: 3}}},
	)
	s.placed, s.changed = &capture{}, &capture{}
	s.mgr = &Manager{
		Catalog: s.store,
		Orders:  orderStore{s.store},
		Tx:      s.store,
		Log:     zaptest.NewLogger(s.T()),
		Placed:  s.placed,
		Changed: s.changed,
		Service: "test",
		Now:     func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) },
	}
}

func (s *ManagerSuite) place(lines ...Line) (*Order, error) {
	return s.mgr.PlaceOrder(s.ctx, PlaceRequest{Customer: Customer{Name: "Rina"}, Items: lines})
}

func (s *ManagerSuite) TestPlaceOrderDeductsStock() {
	o, err := s.place(Line{ProductID: "tee", Size: "M", Quantity: 3}, Line{ProductID: "cap", Size: "OS", Quantity: 1})
	s.Require().NoError(err)
	s.NotEmpty(o.ID)
	s.Equal(StatusPending, o.Status)
	s.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), o.CreatedAt)

	s.Equal(2, s.store.stock("tee", "M"))
	s.Equal(2, s.store.stock("cap", "OS"))
	s.Equal(1, s.store.orderCount())

	envs := s.placed.envelopes(s.T())
	s.Require().Len(envs, 1)
	s.Equal(EventOrderPlaced, envs[0].EventType)
	s.Equal(o.ID, envs[0].CorrelationID)
}

func (s *ManagerSuite) TestRepeatedLinesSeeEarlierDeductions() {
	_, err := s.place(Line{ProductID: "tee", Size: "M", Quantity: 3}, Line{ProductID: "tee", Size: "M", Quantity: 3})
	s.ErrorIs(err, ErrInsufficientStock)
	s.Equal(5, s.store.stock("tee", "M"))

	_, err = s.place(Line{ProductID: "tee", Size: "M", Quantity: 2}, Line{ProductID: "tee", Size: "M", Quantity: 3})
	s.Require().NoError(err)
	s.Equal(0, s.store.stock("tee", "M"))
}

func (s *ManagerSuite) TestInsufficientStockRollsBackEverything() {
	_, err := s.place(Line{ProductID: "tee", Size: "M", Quantity: 1}, Line{ProductID: "cap", Size: "OS", Quantity: 4})
	s.Require().ErrorIs(err, ErrInsufficientStock)

	var le *LineError
	s.Require().True(errors.As(err, &le))
	s.Equal(1, le.Index)
	s.Equal("cap", le.ProductID)
	s.Equal("OS", le.Size)

	s.Equal(5, s.store.stock("tee", "M"))
	s.Equal(3, s.store.stock("cap", "OS"))
	s.Equal(0, s.store.orderCount())
	s.Empty(s.placed.envelopes(s.T()))
}

func (s *ManagerSuite) TestPlaceOrderLineFailures() {
	_, err := s.place(Line{ProductID: "nope", Size: "M", Quantity: 1})
	s.ErrorIs(err, ErrProductNotFound)

	_, err = s.place(Line{ProductID: "tee", Size: "XS", Quantity: 1})
	s.ErrorIs(err, ErrSizeNotFound)
	s.Equal(0, s.store.stockWrites)
}

func (s *ManagerSuite) TestPlaceOrderValidation() {
	cases := map[string]PlaceRequest{
		"no customer":   {Items: []Line{{ProductID: "tee", Size: "M", Quantity: 1}}},
		"no items":      {Customer: Customer{Name: "A"}},
		"zero quantity": {Customer: Customer{Name: "A"}, Items: []Line{{ProductID: "tee", Size: "M"}}},
		"negative":      {Customer: Customer{Name: "A"}, Items: []Line{{ProductID: "tee", Size: "M", Quantity: -2}}},
		"no product":    {Customer: Customer{Name: "A"}, Items: []Line{{Size: "M", Quantity: 1}}},
		"no size":       {Customer: Customer{Name: "A"}, Items: []Line{{ProductID: "tee", Quantity: 1}}},
	}
	for name, req := range cases {
		_, err := s.mgr.PlaceOrder(s.ctx, req)
		s.ErrorIs(err, ErrValidation, name)
	}
	s.Equal(0, s.store.orderCount())
}

func (s *ManagerSuite) TestScenarioSellOutThenCancel() {
	first, err := s.place(Line{ProductID: "tee", Size: "M", Quantity: 5})
	s.Require().NoError(err)
	s.Equal(0, s.store.stock("tee", "M"))

	_, err = s.place(Line{ProductID: "tee", Size: "M", Quantity: 1})
	s.ErrorIs(err, ErrInsufficientStock)

	o, err := s.mgr.ChangeStatus(s.ctx, first.ID, StatusCancelled)
	s.Require().NoError(err)
	s.Equal(StatusCancelled, o.Status)
	s.Equal(5, s.store.stock("tee", "M"))

	envs := s.changed.envelopes(s.T())
	s.Require().Len(envs, 1)
	var p OrderStatusChangedPayload
	s.Require().NoError(json.Unmarshal(envs[0].Payload, &p))
	s.True(p.StockRestored)
	s.Equal(StatusPending, p.From)
	s.Equal(StatusCancelled, p.To)
}

func (s *ManagerSuite) TestCancelIsIdempotent() {
	o, err := s.place(Line{ProductID: "tee", Size: "L", Quantity: 2})
	s.Require().NoError(err)

	_, err = s.mgr.ChangeStatus(s.ctx, o.ID, StatusCancelled)
	s.Require().NoError(err)
	s.Equal(2, s.store.stock("tee", "L"))

	for i := 0; i < 3; i++ {
		_, err = s.mgr.ChangeStatus(s.ctx, o.ID, StatusCancelled)
		s.ErrorIs(err, ErrNoEffectiveChange)
		s.Equal(2, s.store.stock("tee", "L"))
	}

	_, err = s.mgr.ChangeStatus(s.ctx, o.ID, StatusPending)
	s.ErrorIs(err, ErrInvalidTransition)
	s.Equal(2, s.store.stock("tee", "L"))
}

func (s *ManagerSuite) TestRoundTripAcrossStatuses() {
	o, err := s.place(Line{ProductID: "tee", Size: "M", Quantity: 2}, Line{ProductID: "tee", Size: "L", Quantity: 1}, Line{ProductID: "cap", Size: "OS", Quantity: 3})
	s.Require().NoError(err)

	for _, st := range []Status{StatusConfirmed, StatusProcessing, StatusShipped} {
		got, err := s.mgr.ChangeStatus(s.ctx, o.ID, st)
		s.Require().NoError(err)
		s.Equal(st, got.Status)
	}
	s.Equal(3, s.store.stock("tee", "M"))

	_, err = s.mgr.ChangeStatus(s.ctx, o.ID, StatusCancelled)
	s.Require().NoError(err)
	s.Equal(5, s.store.stock("tee", "M"))
	s.Equal(2, s.store.stock("tee", "L"))
	s.Equal(3, s.store.stock("cap", "OS"))
}

func (s *ManagerSuite) TestChangeStatusStoresReturnedTimestamp() {
	o, err := s.place(Line{ProductID: "cap", Size: "OS", Quantity: 1})
	s.Require().NoError(err)

	later := time.Date(2025, 1, 3, 8, 0, 0, 123456789, time.UTC)
	s.mgr.Now = func() time.Time { return later }
	got, err := s.mgr.ChangeStatus(s.ctx, o.ID, StatusShipped)
	s.Require().NoError(err)
	s.Equal(later.Truncate(time.Microsecond), got.UpdatedAt)
	s.Equal(o.CreatedAt, got.CreatedAt)

	stored, err := orderStore{s.store}.Get(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(got.UpdatedAt, stored.UpdatedAt)
	s.Equal(StatusShipped, stored.Status)
}

func (s *ManagerSuite) TestChangeStatusErrors() {
	_, err := s.mgr.ChangeStatus(s.ctx, "missing", StatusShipped)
	s.ErrorIs(err, ErrOrderNotFound)

	_, err = s.mgr.ChangeStatus(s.ctx, "missing", Status("teleported"))
	s.ErrorIs(err, ErrInvalidTransition)

	o, err := s.place(Line{ProductID: "cap", Size: "OS", Quantity: 1})
	s.Require().NoError(err)
	_, err = s.mgr.ChangeStatus(s.ctx, o.ID, StatusPending)
	s.ErrorIs(err, ErrNoEffectiveChange)
}

func (s *ManagerSuite) TestCancelSkipsDeletedProducts() {
	o, err := s.place(Line{ProductID: "tee", Size: "M", Quantity: 1}, Line{ProductID: "cap", Size: "OS", Quantity: 2})
	s.Require().NoError(err)
	s.store.deleteProduct("cap")

	got, err := s.mgr.ChangeStatus(s.ctx, o.ID, StatusCancelled)
	s.Require().NoError(err)
	s.Equal(StatusCancelled, got.Status)
	s.Equal(5, s.store.stock("tee", "M"))
}

func (s *ManagerSuite) TestConcurrentPlacementsNeverOversell() {
	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.place(Line{ProductID: "tee", Size: "M", Quantity: 5})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				success++
				return
			}
			if !errors.Is(err, ErrInsufficientStock) && !errors.Is(err, ErrTransactionConflict) {
				s.Failf("unexpected error", "%v", err)
			}
		}()
	}
	wg.Wait()
	s.Equal(1, success)
	s.Equal(0, s.store.stock("tee", "M"))
	s.Equal(1, s.store.orderCount())
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}
