package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/shop-orders/internal/domain/apperr"
	"github.com/xenking/shop-orders/internal/domain/order"
	"github.com/xenking/shop-orders/internal/domain/product"
	"github.com/xenking/shop-orders/internal/domain/user"
)

func notFound(entity, id string) error {
	return apperr.NotFound(entity, id)
}

type tx struct {
	store *Store
	st    *state
	done  bool
}

var _ order.Tx = (*tx)(nil)

func (t *tx) Users() user.Reader              { return users{t} }
func (t *tx) Products() product.Repository    { return products{t} }
func (t *tx) Orders() order.Repository        { return orders{t} }
func (t *tx) Details() order.DetailRepository { return details{t} }
func (t *tx) Events() order.EventWriter       { return events{t} }

// Commit publishes the transaction state. A transaction whose context has
// expired is rolled back instead.
func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return errTxDone
	}
	if err := ctx.Err(); err != nil {
		t.release()
		return err
	}
	t.store.mu.Lock()
	t.store.st = t.st
	t.store.mu.Unlock()
	t.release()
	return nil
}

func (t *tx) Rollback(context.Context) error {
	if t.done {
		return nil
	}
	t.release()
	return nil
}

func (t *tx) release() {
	t.done = true
	t.st = nil
	<-t.store.sem
}

func (t *tx) check(ctx context.Context, op Op) error {
	if t.done {
		return errTxDone
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.store.fault(op)
}

type users struct{ t *tx }

func (r users) GetByID(ctx context.Context, id string) (*user.User, error) {
	if err := r.t.check(ctx, ""); err != nil {
		return nil, err
	}
	u, ok := r.t.st.users[id]
	if !ok {
		return nil, notFound(user.Entity, id)
	}
	return &u, nil
}

type products struct{ t *tx }

func (r products) GetByID(ctx context.Context, id string) (*product.Product, error) {
	if err := r.t.check(ctx, ""); err != nil {
		return nil, err
	}
	p, ok := r.t.st.products[id]
	if !ok {
		return nil, notFound(product.Entity, id)
	}
	return &p, nil
}

func (r products) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	if err := r.t.check(ctx, ""); err != nil {
		return nil, err
	}
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.t.st.products[id]; ok && p.Stock > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r products) Reserve(ctx context.Context, id string, quantity int) error {
	if err := r.t.check(ctx, OpReserve); err != nil {
		return err
	}
	p, ok := r.t.st.products[id]
	if !ok {
		return notFound(product.Entity, id)
	}
	if p.Stock < quantity {
		return product.ErrInsufficientStock
	}
	p.Stock -= quantity
	r.t.st.products[id] = p
	return nil
}

func (r products) Release(ctx context.Context, id string, quantity int) error {
	if err := r.t.check(ctx, ""); err != nil {
		return err
	}
	p, ok := r.t.st.products[id]
	if !ok {
		return notFound(product.Entity, id)
	}
	p.Stock += quantity
	r.t.st.products[id] = p
	return nil
}

type orders struct{ t *tx }

func (r orders) Create(ctx context.Context, o *order.Order) error {
	if err := r.t.check(ctx, OpCreateOrder); err != nil {
		return err
	}
	if _, ok := r.t.st.orders[o.ID]; ok {
		return apperr.Conflict("order already exists", nil)
	}
	row := orderRow{Order: *o, seq: r.t.st.next()}
	row.Details = nil
	r.t.st.orders[o.ID] = row
	return nil
}

func (r orders) live(id string) (orderRow, bool) {
	row, ok := r.t.st.orders[id]
	if !ok || row.DeletedAt != nil {
		return orderRow{}, false
	}
	return row, true
}

func (r orders) withDetails(row orderRow) order.Order {
	o := row.Order
	var rows []detailRow
	for _, d := range r.t.st.details {
		if d.OrderID == o.ID && d.DeletedAt == nil {
			rows = append(rows, d)
		}
	}
	slices.SortFunc(rows, func(a, b detailRow) int { return cmp.Compare(a.seq, b.seq) })

	o.Details = make([]order.Detail, 0, len(rows))
	for _, d := range rows {
		o.Details = append(o.Details, details{r.t}.withProduct(d.Detail))
	}
	return o
}

func (r orders) GetByID(ctx context.Context, id string) (*order.Order, error) {
	if err := r.t.check(ctx, ""); err != nil {
		return nil, err
	}
	row, ok := r.live(id)
	if !ok {
		return nil, notFound(order.Entity, id)
	}
	o := r.withDetails(row)
	return &o, nil
}

func (r orders) List(ctx context.Context, params order.ListParams) ([]order.Order, error) {
	if err := r.t.check(ctx, ""); err != nil {
		return nil, err
	}
	var rows []orderRow
	for row := range maps.Values(r.t.st.orders) {
		if row.DeletedAt == nil {
			rows = append(rows, row)
		}
	}
	slices.SortFunc(rows, func(a, b orderRow) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})

	page := window(rows, params.Offset(), params.Limit)
	out := make([]order.Order, 0, len(page))
	for _, row := range page {
		out = append(out, r.withDetails(row))
	}
	return out, nil
}

func (r orders) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	if err := r.t.check(ctx, ""); err != nil {
		return err
	}
	row, ok := r.live(id)
	if !ok {
		return notFound(order.Entity, id)
	}
	row.Status = status
	r.t.st.orders[id] = row
	return nil
}

func (r orders) UpdateAmounts(ctx context.Context, id string, total, shipping decimal.Decimal, discount *decimal.Decimal) error {
	if err := r.t.check(ctx, ""); err != nil {
		return err
	}
	row, ok := r.live(id)
	if !ok {
		return notFound(order.Entity, id)
	}
	row.Total, row.Shipping, row.GeneralDiscount = total, shipping, discount
	r.t.st.orders[id] = row
	return nil
}

func (r orders) SoftDelete(ctx context.Context, id string, at time.Time) error {
	if err := r.t.check(ctx, ""); err != nil {
		return err
	}
	row, ok := r.live(id)
	if !ok {
		return notFound(order.Entity, id)
	}
	row.DeletedAt = &at
	r.t.st.orders[id] = row
	for did, d := range r.t.st.details {
		if d.OrderID == id && d.DeletedAt == nil {
			d.DeletedAt = &at
			r.t.st.details[did] = d
		}
	}
	return nil
}

type details struct{ t *tx }

func (r details) withProduct(d order.Detail) order.Detail {
	if p, ok := r.t.st.products[d.ProductID]; ok {
		d.Product = &p
	}
	return d
}

func (r details) CreateBatch(ctx context.Context, ds []order.Detail) error {
	if err := r.t.check(ctx, OpCreateDetails); err != nil {
		return err
	}
	for _, d := range ds {
		if _, ok := r.t.st.details[d.ID]; ok {
			return apperr.Conflict("order detail already exists", nil)
		}
		if _, ok := r.t.st.orders[d.OrderID]; !ok {
			return notFound(order.Entity, d.OrderID)
		}
		d.Product = nil
		r.t.st.details[d.ID] = detailRow{Detail: d, seq: r.t.st.next()}
	}
	return nil
}

func (r details) GetByID(ctx context.Context, id string) (*order.Detail, error) {
	if err := r.t.check(ctx, ""); err != nil {
		return nil, err
	}
	row, ok := r.t.st.details[id]
	if !ok || row.DeletedAt != nil {
		return nil, notFound(order.DetailEntity, id)
	}
	d := r.withProduct(row.Detail)
	return &d, nil
}

func (r details) Update(ctx context.Context, d *order.Detail) error {
	if err := r.t.check(ctx, OpUpdateDetail); err != nil {
		return err
	}
	row, ok := r.t.st.details[d.ID]
	if !ok || row.DeletedAt != nil {
		return notFound(order.DetailEntity, d.ID)
	}
	row.Detail = *d
	row.Product = nil
	r.t.st.details[d.ID] = row
	return nil
}

type events struct{ t *tx }

func (r events) Append(ctx context.Context, e order.Event) error {
	if err := r.t.check(ctx, OpAppendEvent); err != nil {
		return err
	}
	r.t.st.events = append(r.t.st.events, e)
	return nil
}
