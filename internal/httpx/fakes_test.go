package httpx

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/users"
)

type fakeEngine struct {
	mu      sync.Mutex
	placed  int
	place   func(orders.PlaceRequest) (*orders.Order, error)
	changes []orders.Status
	change  func(id string, to orders.Status) (*orders.Order, error)
}

func (f *fakeEngine) PlaceOrder(_ context.Context, req orders.PlaceRequest) (*orders.Order, error) {
	f.mu.Lock()
	f.placed++
	f.mu.Unlock()
	return f.place(req)
}

func (f *fakeEngine) ChangeStatus(_ context.Context, id string, to orders.Status) (*orders.Order, error) {
	f.mu.Lock()
	f.changes = append(f.changes, to)
	f.mu.Unlock()
	return f.change(id, to)
}

type fakeOrders struct {
	byID map[string]*orders.Order
	gets int
}

func (f *fakeOrders) Get(_ context.Context, id string) (*orders.Order, error) {
	f.gets++
	o, ok := f.byID[id]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeOrders) List(context.Context) ([]orders.Order, error) {
	out := []orders.Order{}
	for _, o := range f.byID {
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeOrders) Delete(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return orders.ErrOrderNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeCache struct{ m map[string]*orders.Order }

func (f *fakeCache) Get(_ context.Context, id string) (*orders.Order, bool) {
	o, ok := f.m[id]
	return o, ok
}

func (f *fakeCache) Put(_ context.Context, o *orders.Order) error {
	f.m[o.ID] = o
	return nil
}

func (f *fakeCache) Invalidate(_ context.Context, id string) error {
	delete(f.m, id)
	return nil
}

type fakeIdem struct {
	m            map[string]string
	failComplete bool
}

func (f *fakeIdem) Begin(_ context.Context, key string) (string, bool, error) {
	if v, ok := f.m[key]; ok {
		return v, false, nil
	}
	f.m[key] = redisx.IdemPending
	return "", true, nil
}

func (f *fakeIdem) Complete(_ context.Context, key, orderID string) error {
	if f.failComplete {
		return errors.New("redis timeout")
	}
	f.m[key] = orderID
	return nil
}

func (f *fakeIdem) Release(_ context.Context, key string) error {
	delete(f.m, key)
	return nil
}

type fakeTokens map[string]string

func (f fakeTokens) Verify(_ context.Context, token string) (string, error) {
	email, ok := f[token]
	if !ok {
		return "", redisx.ErrUnknownToken
	}
	return email, nil
}

type fakeUsers struct {
	byEmail map[string]*users.User
	upserts int
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*users.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) Upsert(_ context.Context, u *users.User, now time.Time) (bool, error) {
	f.upserts++
	if u.Email == "" {
		return false, users.ErrEmailRequired
	}
	if old, ok := f.byEmail[u.Email]; ok {
		old.LastLogin = &now
		return false, nil
	}
	u.ID = "u-" + u.Email
	u.CreatedAt = now
	f.byEmail[u.Email] = u
	return true, nil
}

func (f *fakeUsers) List(context.Context) ([]users.User, error) {
	out := []users.User{}
	for _, u := range f.byEmail {
		out = append(out, *u)
	}
	return out, nil
}

func (f *fakeUsers) UpdateRole(_ context.Context, id string, role users.Role) error {
	for _, u := range f.byEmail {
		if u.ID != id {
			continue
		}
		if u.Role == role {
			return users.ErrRoleUnchanged
		}
		u.Role = role
		return nil
	}
	return users.ErrNotFound
}

type fakeProducts struct {
	byID    map[string]*catalog.Product
	filters []catalog.Filter
}

func (f *fakeProducts) Get(_ context.Context, id string) (*catalog.Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p, nil
}

func (f *fakeProducts) List(_ context.Context, flt catalog.Filter) ([]catalog.Product, error) {
	f.filters = append(f.filters, flt)
	return []catalog.Product{}, nil
}

func (f *fakeProducts) Create(_ context.Context, p *catalog.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	p.ID = "6b0c8c9e-3a44-4d53-9e3f-2f7f1f6d9a10"
	f.byID[p.ID] = p
	return nil
}

func (f *fakeProducts) Update(_ context.Context, p *catalog.Product) error {
	if _, ok := f.byID[p.ID]; !ok {
		return catalog.ErrNotFound
	}
	f.byID[p.ID] = p
	return nil
}

func (f *fakeProducts) Delete(_ context.Context, id string) error {
	if _, ok := f.byID[id]; !ok {
		return catalog.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}
