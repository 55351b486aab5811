package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/shop-orders/internal/domain/pricing"
)

// GetOrder returns a live order with its details and their products.
func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.GetOrder", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	var o *Order
	err := s.inTx(ctx, func(ctx context.Context, tx Tx) (err error) {
		o, err = tx.Orders().GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, s.finish(ctx, span, "get", err, fmt.Sprintf("failed to get order %s", id))
	}
	return o, nil
}

// ListOrders returns a page of live orders, newest first. Zero values select
// page 1 and the configured default limit.
func (s *Service) ListOrders(ctx context.Context, params ListParams) ([]Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.ListOrders")
	defer span.End()

	if params.Page < 1 {
		params.Page = 1
	}
	if params.Limit < 1 {
		params.Limit = s.cfg.DefaultLimit
	}
	if params.Limit > s.cfg.MaxLimit {
		params.Limit = s.cfg.MaxLimit
	}
	span.SetAttributes(attribute.Int("page", params.Page), attribute.Int("limit", params.Limit))

	var orders []Order
	err := s.inTx(ctx, func(ctx context.Context, tx Tx) (err error) {
		orders, err = tx.Orders().List(ctx, params)
		return err
	})
	if err != nil {
		return nil, s.finish(ctx, span, "list", err, "failed to list orders")
	}
	return orders, nil
}

// GetDetail returns a live order detail with its product.
func (s *Service) GetDetail(ctx context.Context, id string) (*Detail, error) {
	ctx, span := s.tracer.Start(ctx, "order.GetDetail", trace.WithAttributes(attribute.String("detail.id", id)))
	defer span.End()

	var d *Detail
	err := s.inTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		if d, err = tx.Details().GetByID(ctx, id); err != nil {
			return err
		}
		if d.Product == nil {
			if d.Product, err = tx.Products().GetByID(ctx, d.ProductID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.finish(ctx, span, "get_detail", err, fmt.Sprintf("failed to get order detail %s", id))
	}
	return d, nil
}

// UpdateStatus moves an order to a new lifecycle status. Details and stock
// are not touched.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.status", status),
	))
	defer span.End()

	st, err := ParseStatus(status)
	if err != nil {
		return nil, s.finish(ctx, span, "update_status", err, "")
	}

	var o *Order
	err = s.inTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Orders().UpdateStatus(ctx, id, st); err != nil {
			return err
		}
		var err error
		if o, err = tx.Orders().GetByID(ctx, id); err != nil {
			return err
		}
		return s.appendOrderEvent(ctx, tx, EventStatusChanged, o)
	})
	if err != nil {
		return nil, s.finish(ctx, span, "update_status", err, fmt.Sprintf("failed to update status of order %s", id))
	}

	zctx.From(ctx).Info("Order status changed", zap.String("order_id", id), zap.String("status", string(st)))
	return o, nil
}

// UpdateOrderRequest overrides the monetary snapshot of an order.
type UpdateOrderRequest struct {
	Total           decimal.Decimal
	Shipping        decimal.Decimal
	GeneralDiscount *decimal.Decimal
}

// UpdateOrder replaces total, shipping and general discount of an order.
// The values are stored as given; lines are not repriced.
func (s *Service) UpdateOrder(ctx context.Context, id string, req UpdateOrderRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateOrder", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	if err := pricing.ValidateAmount("total", req.Total); err != nil {
		return nil, s.finish(ctx, span, "update", err, "")
	}
	if err := pricing.ValidateAmount("shipping", req.Shipping); err != nil {
		return nil, s.finish(ctx, span, "update", err, "")
	}
	if err := pricing.ValidateDiscount(req.GeneralDiscount); err != nil {
		return nil, s.finish(ctx, span, "update", err, "")
	}

	var o *Order
	err := s.inTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Orders().UpdateAmounts(ctx, id, req.Total.Round(2), req.Shipping.Round(2), req.GeneralDiscount); err != nil {
			return err
		}
		var err error
		if o, err = tx.Orders().GetByID(ctx, id); err != nil {
			return err
		}
		return s.appendOrderEvent(ctx, tx, EventUpdated, o)
	})
	if err != nil {
		return nil, s.finish(ctx, span, "update", err, fmt.Sprintf("failed to update order %s", id))
	}
	return o, nil
}

// DeleteOrder soft-deletes an order together with its details.
func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "order.DeleteOrder", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	err := s.inTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.Orders().GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.Orders().SoftDelete(ctx, id, s.now().UTC()); err != nil {
			return err
		}
		return s.appendOrderEvent(ctx, tx, EventDeleted, o)
	})
	if err != nil {
		return s.finish(ctx, span, "delete", err, fmt.Sprintf("failed to delete order %s", id))
	}

	zctx.From(ctx).Info("Order deleted", zap.String("order_id", id))
	return nil
}

func (s *Service) appendOrderEvent(ctx context.Context, tx Tx, typ string, o *Order) error {
	ev, err := orderEvent(typ, o, s.now().UTC())
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	if err := tx.Events().Append(ctx, ev); err != nil {
		return errors.Wrap(err, "append event")
	}
	return nil
}
