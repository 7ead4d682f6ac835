package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Skotchmaster/custom_stores/internal/gateway"
	"github.com/Skotchmaster/custom_stores/internal/models"
	"github.com/Skotchmaster/custom_stores/internal/notify"
	"github.com/Skotchmaster/custom_stores/internal/repo"
	"github.com/Skotchmaster/custom_stores/internal/tokens"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type sentMail struct {
	Kind  string
	To    string
	Value string
	Order notify.OrderConfirmation
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	fail error
}

func (m *fakeMailer) record(mail sentMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.sent = append(m.sent, mail)
	return nil
}

func (m *fakeMailer) SendOrderConfirmation(_ context.Context, to string, o notify.OrderConfirmation) error {
	return m.record(sentMail{Kind: "order", To: to, Order: o})
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, to, link string) error {
	return m.record(sentMail{Kind: "reset", To: to, Value: link})
}

func (m *fakeMailer) SendVerification(_ context.Context, to, code string) error {
	return m.record(sentMail{Kind: "verify", To: to, Value: code})
}

func (m *fakeMailer) SendWelcome(_ context.Context, to, name string) error {
	return m.record(sentMail{Kind: "welcome", To: to, Value: name})
}

func (m *fakeMailer) setFail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func (m *fakeMailer) byKind(kind string) []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []sentMail
	for _, s := range m.sent {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

type published struct {
	Topic string
	Key   string
	Event any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) PublishEvent(_ context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Topic: topic, Key: key, Event: event})
	return nil
}

func (p *fakePublisher) onTopic(topic string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

type fakeGateway struct {
	mu    sync.Mutex
	n     int
	err   error
	calls []gateway.CreateOrderRequest
}

func (g *fakeGateway) CreateOrder(_ context.Context, req gateway.CreateOrderRequest) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.err != nil {
		return nil, g.err
	}
	g.n++
	return &gateway.Order{
		ID:       fmt.Sprintf("order_test_%d", g.n),
		Entity:   "order",
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

var errBoom = errors.New("boom")

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	u := &models.User{Name: "Test User", Email: email, PasswordHash: "x", Role: tokens.RoleUser}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedProduct(t *testing.T, db *gorm.DB, name, price string, inStock bool) *models.Product {
	t.Helper()
	cat := &models.Category{Name: "cat-" + uuid.NewString()[:8], Image: "https://img/cat.png"}
	require.NoError(t, db.Create(cat).Error)

	p := &models.Product{
		Name:          name,
		Description:   name + " description",
		ActualPrice:   decimal.RequireFromString(price).Add(decimal.NewFromInt(10)),
		DiscountPrice: decimal.RequireFromString(price),
		Colors: []models.ProductColor{
			{Name: "black", Images: []string{"https://img/" + name + "-black.png"}},
			{Name: "red", Images: []string{"https://img/" + name + "-red.png"}},
		},
		PrimaryImage: "https://img/" + name + "-black.png",
		CategoryID:   cat.ID,
		InStock:      inStock,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func requireCartTotals(t *testing.T, cart *models.Cart) {
	t.Helper()
	sum := decimal.Zero
	for _, it := range cart.CartItems {
		require.True(t, it.TotalCost.Equal(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))),
			"line %s: %s != %d x %s", it.ProductID, it.TotalCost, it.Quantity, it.Price)
		sum = sum.Add(it.TotalCost)
	}
	require.True(t, cart.TotalCartCost.Equal(sum), "cart total %s != %s", cart.TotalCartCost, sum)
}

// requireStoredCartTotals re-reads the cart so the persisted totals are
// checked, not just the returned copy.
func requireStoredCartTotals(t *testing.T, r *repo.GormRepo, userID uuid.UUID) *models.Cart {
	t.Helper()
	cart, err := r.GetCart(context.Background(), userID)
	require.NoError(t, err)
	requireCartTotals(t, cart)
	return cart
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
