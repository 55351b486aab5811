package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/shop-orders/internal/domain/apperr"
	"github.com/xenking/shop-orders/internal/domain/pricing"
	"github.com/xenking/shop-orders/internal/domain/product"
)

const instrumentationName = "github.com/xenking/shop-orders/internal/domain/order"

// Config holds workflow tunables.
type Config struct {
	// DefaultShipping is charged when PlaceOrder receives no shipping override.
	DefaultShipping decimal.Decimal
	// TxTimeout bounds every transaction the service opens.
	TxTimeout time.Duration
	// DefaultLimit and MaxLimit bound ListOrders page sizes.
	DefaultLimit int
	MaxLimit     int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultShipping: pricing.DefaultShipping,
		TxTimeout:       5 * time.Second,
		DefaultLimit:    5,
		MaxLimit:        100,
	}
}

// StockObserver is told which products changed stock after a transaction
// commits. Used to invalidate cached product reads.
type StockObserver interface {
	StockChanged(ctx context.Context, productIDs ...string)
}

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the tracer provider used for workflow spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider used for workflow counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meter = mp.Meter(instrumentationName) }
}

// WithStockObserver registers an observer for committed stock changes.
func WithStockObserver(o StockObserver) Option {
	return func(s *Service) { s.observers = append(s.observers, o) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service runs the order workflow. Every mutating operation executes in a
// single transaction opened through the UnitOfWork.
type Service struct {
	uow       UnitOfWork
	cfg       Config
	now       func() time.Time
	observers []StockObserver

	tracer trace.Tracer
	meter  metric.Meter

	placed         metric.Int64Counter
	stockConflicts metric.Int64Counter
	failures       metric.Int64Counter
}

// NewService creates an order Service.
func NewService(uow UnitOfWork, cfg Config, opts ...Option) (*Service, error) {
	s := &Service{
		uow:    uow,
		cfg:    cfg,
		now:    time.Now,
		tracer: otel.GetTracerProvider().Tracer(instrumentationName),
		meter:  otel.GetMeterProvider().Meter(instrumentationName),
	}
	for _, o := range opts {
		o(s)
	}
	if s.cfg.TxTimeout <= 0 {
		s.cfg.TxTimeout = DefaultConfig().TxTimeout
	}
	if s.cfg.DefaultLimit <= 0 {
		s.cfg.DefaultLimit = DefaultConfig().DefaultLimit
	}
	if s.cfg.MaxLimit < s.cfg.DefaultLimit {
		s.cfg.MaxLimit = s.cfg.DefaultLimit
	}

	var err error
	if s.placed, err = s.meter.Int64Counter("shop.orders.placed",
		metric.WithDescription("Orders committed by PlaceOrder"),
	); err != nil {
		return nil, errors.Wrap(err, "orders placed counter")
	}
	if s.stockConflicts, err = s.meter.Int64Counter("shop.orders.stock_conflicts",
		metric.WithDescription("Mutations rejected for lack of stock"),
	); err != nil {
		return nil, errors.Wrap(err, "stock conflicts counter")
	}
	if s.failures, err = s.meter.Int64Counter("shop.orders.failures",
		metric.WithDescription("Workflow operations that failed with OperationFailed"),
	); err != nil {
		return nil, errors.Wrap(err, "failures counter")
	}
	return s, nil
}

// inTx runs fn in a transaction bounded by TxTimeout. The transaction is
// committed when fn returns nil and rolled back otherwise.
func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TxTimeout)
	defer cancel()

	tx, err := s.uow.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
			zctx.From(ctx).Error("Rollback failed", zap.Error(err))
		}
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// finish records err on the span and metrics and applies the boundary policy.
func (s *Service) finish(ctx context.Context, span trace.Span, op string, err error, msg string) error {
	if err == nil {
		return nil
	}
	out := apperr.Boundary(err, msg)
	span.RecordError(err)
	span.SetStatus(codes.Error, out.Error())

	attrs := metric.WithAttributes(attribute.String("op", op))
	switch {
	case errors.Is(err, product.ErrInsufficientStock), errors.Is(err, product.ErrOutOfStock):
		s.stockConflicts.Add(ctx, 1, attrs)
		zctx.From(ctx).Warn("Stock conflict", zap.String("op", op), zap.Error(err))
	case apperr.KindOf(out) == apperr.KindOperationFailed:
		s.failures.Add(ctx, 1, attrs)
		zctx.From(ctx).Error("Operation failed", zap.String("op", op), zap.Error(err))
	}
	return out
}

func (s *Service) notifyStock(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	for _, o := range s.observers {
		o.StockChanged(ctx, ids...)
	}
}

// PlaceOrderRequest is the input of PlaceOrder. Each entry in ProductIDs is
// one unit; repeated identifiers produce separate lines.
type PlaceOrderRequest struct {
	UserID          string
	ProductIDs      []string
	Shipping        *decimal.Decimal
	GeneralDiscount *decimal.Decimal
}

// PlaceOrder creates an order with one quantity-1 line per requested product,
// reserving one unit of stock per line in the same transaction.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder",
		trace.WithAttributes(
			attribute.String("user.id", req.UserID),
			attribute.Int("order.products", len(req.ProductIDs)),
		),
	)
	defer span.End()

	if len(req.ProductIDs) == 0 {
		return nil, s.finish(ctx, span, "place", apperr.Invalid("products required"), "")
	}
	if err := pricing.ValidateDiscount(req.GeneralDiscount); err != nil {
		return nil, s.finish(ctx, span, "place", err, "")
	}
	shipping := s.cfg.DefaultShipping
	if req.Shipping != nil {
		shipping = *req.Shipping
	}
	if err := pricing.ValidateAmount("shipping", shipping); err != nil {
		return nil, s.finish(ctx, span, "place", err, "")
	}

	unique := uniqueIDs(req.ProductIDs)

	var placed *Order
	err := s.inTx(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.Users().GetByID(ctx, req.UserID); err != nil {
			return err
		}

		found, err := tx.Products().GetByIDs(ctx, unique)
		if err != nil {
			return errors.Wrap(err, "get products")
		}
		if len(found) < len(unique) {
			return product.ErrOutOfStock
		}
		byID := make(map[string]product.Product, len(found))
		for _, p := range found {
			byID[p.ID] = p
		}

		now := s.now().UTC()
		o := &Order{
			ID:              uuid.NewString(),
			UserID:          req.UserID,
			Shipping:        shipping,
			GeneralDiscount: req.GeneralDiscount,
			Date:            now,
			Status:          StatusPending,
		}

		prices := make([]decimal.Decimal, 0, len(req.ProductIDs))
		details := make([]Detail, 0, len(req.ProductIDs))
		for _, id := range req.ProductIDs {
			p := byID[id]
			if err := tx.Products().Reserve(ctx, id, 1); err != nil {
				if errors.Is(err, product.ErrInsufficientStock) {
					return product.ErrOutOfStock
				}
				return errors.Wrapf(err, "reserve %s", id)
			}
			prices = append(prices, p.Price)
			details = append(details, Detail{
				ID:        uuid.NewString(),
				OrderID:   o.ID,
				ProductID: id,
				Quantity:  1,
				Price:     p.Price,
				Status:    StatusPending,
				Product:   &p,
			})
		}
		o.Total = pricing.OrderTotal(prices, req.GeneralDiscount, shipping)

		if err := tx.Orders().Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		if err := tx.Details().CreateBatch(ctx, details); err != nil {
			return errors.Wrap(err, "create details")
		}
		o.Details = details

		ev, err := orderEvent(EventPlaced, o, now)
		if err != nil {
			return errors.Wrap(err, "encode event")
		}
		if err := tx.Events().Append(ctx, ev); err != nil {
			return errors.Wrap(err, "append event")
		}

		placed = o
		return nil
	})
	if err != nil {
		return nil, s.finish(ctx, span, "place", err, "failed to process order")
	}

	s.placed.Add(ctx, 1)
	s.notifyStock(ctx, unique...)
	span.SetAttributes(attribute.String("order.id", placed.ID))
	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", placed.ID),
		zap.String("user_id", placed.UserID),
		zap.Int("lines", len(placed.Details)),
		zap.Stringer("total", placed.Total),
	)
	return placed, nil
}

// UpdateDetailRequest is the input of UpdateDetail. A nil product or quantity
// keeps the current value; a nil discount prices the line at full price.
type UpdateDetailRequest struct {
	NewProductID *string
	Quantity     *int
	Discount     *decimal.Decimal
}

// UpdateDetail swaps the product, changes the quantity or the line discount of
// an order detail, moving stock between products as needed, and recomputes
// the line price.
func (s *Service) UpdateDetail(ctx context.Context, id string, req UpdateDetailRequest) (*Detail, error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateDetail",
		trace.WithAttributes(attribute.String("detail.id", id)),
	)
	defer span.End()

	if req.Quantity != nil {
		if err := pricing.ValidateQuantity(*req.Quantity); err != nil {
			return nil, s.finish(ctx, span, "update_detail", err, "")
		}
	}
	if err := pricing.ValidateDiscount(req.Discount); err != nil {
		return nil, s.finish(ctx, span, "update_detail", err, "")
	}

	var (
		updated *Detail
		touched []string
	)
	err := s.inTx(ctx, func(ctx context.Context, tx Tx) error {
		d, err := tx.Details().GetByID(ctx, id)
		if err != nil {
			return err
		}
		prevProductID, prevQuantity := d.ProductID, d.Quantity

		quantity := d.Quantity
		if req.Quantity != nil {
			quantity = *req.Quantity
		}

		products := tx.Products()
		var p *product.Product
		switch {
		case req.NewProductID != nil && *req.NewProductID != d.ProductID:
			if p, err = products.GetByID(ctx, *req.NewProductID); err != nil {
				return err
			}
			if quantity > p.Stock {
				return product.ErrInsufficientStock
			}
			if err := swapStock(ctx, products, prevProductID, prevQuantity, p.ID, quantity); err != nil {
				return err
			}
			touched = []string{prevProductID, p.ID}
		case quantity != prevQuantity:
			if p, err = products.GetByID(ctx, d.ProductID); err != nil {
				return err
			}
			delta := quantity - prevQuantity
			if delta > 0 && quantity > p.Stock {
				return product.ErrInsufficientStock
			}
			if err := product.Adjust(ctx, products, p.ID, delta); err != nil {
				return err
			}
			touched = []string{p.ID}
		default:
			if p, err = products.GetByID(ctx, d.ProductID); err != nil {
				return err
			}
		}

		d.Discount = req.Discount
		d.ProductID = p.ID
		d.Quantity = quantity
		d.Price = pricing.LinePrice(p.Price, quantity, d.Discount)
		d.Product = p

		if err := tx.Details().Update(ctx, d); err != nil {
			return errors.Wrap(err, "save detail")
		}

		ev, err := detailEvent(d, prevProductID, prevQuantity, s.now().UTC())
		if err != nil {
			return errors.Wrap(err, "encode event")
		}
		if err := tx.Events().Append(ctx, ev); err != nil {
			return errors.Wrap(err, "append event")
		}

		updated = d
		return nil
	})
	if err != nil {
		touched = nil
		return nil, s.finish(ctx, span, "update_detail", err, fmt.Sprintf("failed to update order detail %s", id))
	}

	s.notifyStock(ctx, touched...)
	zctx.From(ctx).Info("Order detail updated",
		zap.String("detail_id", updated.ID),
		zap.String("product_id", updated.ProductID),
		zap.Int("quantity", updated.Quantity),
		zap.Stringer("price", updated.Price),
	)
	return updated, nil
}

// swapStock returns quantity units of the old product and takes newQty units
// of the new one. Rows are updated in id order so that opposite swaps running
// concurrently queue on the same lock instead of deadlocking.
func swapStock(ctx context.Context, l product.Ledger, oldID string, oldQty int, newID string, newQty int) error {
	release := func() error {
		if err := l.Release(ctx, oldID, oldQty); err != nil {
			return errors.Wrapf(err, "release %s", oldID)
		}
		return nil
	}
	reserve := func() error { return l.Reserve(ctx, newID, newQty) }

	first, second := release, reserve
	if newID < oldID {
		first, second = reserve, release
	}
	if err := first(); err != nil {
		return err
	}
	return second()
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
