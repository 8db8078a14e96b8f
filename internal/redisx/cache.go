package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/redis/go-redis/v9"
	"log"
	"time"
)

// Cache holds every best-effort redis concern of the service. Redis is never
// the source of truth: failures are logged and callers fall back to the store.
// A nil Cache, or one without a client, does nothing.
type Cache struct {
	RDB *redis.Client
}

func (c *Cache) enabled() bool { return c != nil && c.RDB != nil }

type OrderStatusView struct {
	UserID        string               `json:"user_id"`
	Status        domain.Status        `json:"status"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

func (c *Cache) SetOrderStatus(ctx context.Context, o domain.Order) {
	if !c.enabled() {
		return
	}
	b, err := json.Marshal(OrderStatusView{UserID: o.UserID, Status: o.Status, PaymentStatus: o.PaymentStatus, UpdatedAt: o.UpdatedAt})
	if err != nil {
		log.Printf("redis: marshal order status %s: %v", o.ID, err)
		return
	}
	key := fmt.Sprintf(KeyOrderStatus, o.ID)
	if err := c.RDB.Set(ctx, key, b, TTLStatusCache).Err(); err != nil {
		log.Printf("redis: cache order status %s: %v", o.ID, err)
		// drop the previous view so readers go to the store
		if err := c.RDB.Del(ctx, key).Err(); err != nil {
			log.Printf("redis: drop order status %s: %v", o.ID, err)
		}
	}
}

// OrderStatus returns the cached status view of an order, if present.
func (c *Cache) OrderStatus(ctx context.Context, orderID string) (OrderStatusView, bool) {
	if !c.enabled() {
		return OrderStatusView{}, false
	}
	b, err := c.RDB.Get(ctx, fmt.Sprintf(KeyOrderStatus, orderID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("redis: get order status %s: %v", orderID, err)
		}
		return OrderStatusView{}, false
	}
	var v OrderStatusView
	if err := json.Unmarshal(b, &v); err != nil {
		return OrderStatusView{}, false
	}
	return v, true
}

// Product reads a product through the cache. Misses call load and store the
// result; a NotFound from load is cached briefly as a negative entry.
func (c *Cache) Product(ctx context.Context, id string, load func(context.Context) (domain.Product, error)) (domain.Product, error) {
	if !c.enabled() {
		return load(ctx)
	}
	key := fmt.Sprintf(KeyProduct, id)

	data, err := c.RDB.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if string(data) == productMissing {
			return domain.Product{}, fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
		}
		var p domain.Product
		if err := json.Unmarshal(data, &p); err != nil {
			log.Printf("redis: bad cached product %s (continuing with store): %v", id, err)
			break
		}
		return p, nil
	case errors.Is(err, redis.Nil):
	default:
		log.Printf("redis: get product %s (continuing with store): %v", id, err)
	}

	p, err := load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			if setErr := c.RDB.Set(ctx, key, productMissing, TTLProductMissing).Err(); setErr != nil {
				log.Printf("redis: cache missing product %s: %v", id, setErr)
			}
		}
		return domain.Product{}, err
	}
	b, err := json.Marshal(p)
	if err != nil {
		log.Printf("redis: marshal product %s: %v", id, err)
		return p, nil
	}
	if err := c.RDB.Set(ctx, key, b, TTLProduct).Err(); err != nil {
		log.Printf("redis: cache product %s: %v", id, err)
	}
	return p, nil
}

func (c *Cache) InvalidateProduct(ctx context.Context, productID string) {
	if !c.enabled() {
		return
	}
	if err := c.RDB.Del(ctx, fmt.Sprintf(KeyProduct, productID)).Err(); err != nil {
		log.Printf("redis: invalidate product %s: %v", productID, err)
	}
}

// CheckoutOrder returns the order created earlier under the same idempotency key.
func (c *Cache) CheckoutOrder(ctx context.Context, userID, idemKey string) (string, bool) {
	if !c.enabled() || idemKey == "" {
		return "", false
	}
	id, err := c.RDB.Get(ctx, fmt.Sprintf(KeyIdemCheckout, userID, idemKey)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("redis: get checkout key: %v", err)
		}
		return "", false
	}
	return id, id != ""
}

func (c *Cache) RememberCheckout(ctx context.Context, userID, idemKey, orderID string) {
	if !c.enabled() || idemKey == "" {
		return
	}
	if err := c.RDB.Set(ctx, fmt.Sprintf(KeyIdemCheckout, userID, idemKey), orderID, TTLIdempotency).Err(); err != nil {
		log.Printf("redis: remember checkout %s: %v", orderID, err)
	}
}

// Claim marks an event as taken by service. It reports false when the event
// was already claimed. Without redis every event is claimed.
func (c *Cache) Claim(ctx context.Context, service, eventID string) (bool, error) {
	if !c.enabled() {
		return true, nil
	}
	return c.RDB.SetNX(ctx, fmt.Sprintf(KeyDedup, service, eventID), "1", TTLDedup).Result()
}

// Release drops a claim so a redelivered event is processed again.
func (c *Cache) Release(ctx context.Context, service, eventID string) {
	if !c.enabled() {
		return
	}
	if err := c.RDB.Del(ctx, fmt.Sprintf(KeyDedup, service, eventID)).Err(); err != nil {
		log.Printf("redis: release %s/%s: %v", service, eventID, err)
	}
}
