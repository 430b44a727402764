package checkout_test

import (
	"context"
	"io"
	"ms-checkout/internal/checkout"
	"ms-checkout/internal/config"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"time"

	"github.com/stretchr/testify/mock"
)

// Mock implementations
type MockCheckoutDB struct {
	mock.Mock
}

func (m *MockCheckoutDB) SaveCheckout(ctx context.Context, c *models.Checkout) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCheckoutDB) GetCheckoutByID(ctx context.Context, id string) (*models.Checkout, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Checkout), args.Error(1)
}

func (m *MockCheckoutDB) UpdateCheckout(ctx context.Context, c *models.Checkout) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCheckoutDB) DeleteCheckout(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockParticipantDB struct {
	mock.Mock
}

func (m *MockParticipantDB) SaveParticipant(ctx context.Context, p *models.Participant) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockParticipantDB) GetParticipantsByCheckoutID(ctx context.Context, checkoutID string) ([]*models.Participant, error) {
	args := m.Called(ctx, checkoutID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Participant), args.Error(1)
}

func (m *MockParticipantDB) DeleteParticipantsByCheckoutID(ctx context.Context, checkoutID string) (int, error) {
	args := m.Called(ctx, checkoutID)
	return args.Int(0), args.Error(1)
}

type MockCouponDB struct {
	mock.Mock
}

func (m *MockCouponDB) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Coupon), args.Error(1)
}

func (m *MockCouponDB) UpdateCoupon(ctx context.Context, c *models.Coupon) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreatePreference(ctx context.Context, req models.PreferenceRequest) (*models.Preference, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Preference), args.Error(1)
}

func (m *MockGateway) GetPayment(ctx context.Context, paymentID string) (*models.PaymentInfo, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentInfo), args.Error(1)
}

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendConfirmation(ctx context.Context, p *models.Participant, c *models.Checkout) error {
	args := m.Called(ctx, p, c)
	return args.Error(0)
}

type MockKafkaProducer struct {
	mock.Mock
}

func (m *MockKafkaProducer) Publish(topic string, key string, value []byte) error {
	args := m.Called(topic, key, value)
	return args.Error(0)
}

type MockGuard struct {
	mock.Mock
}

func (m *MockGuard) MarkApproved(ctx context.Context, checkoutID, paymentID string) (bool, error) {
	args := m.Called(ctx, checkoutID, paymentID)
	return args.Bool(0), args.Error(1)
}

type MockEventParser struct {
	mock.Mock
}

func (m *MockEventParser) ParseEvent(payload []byte, signature string) (*checkout.Notification, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*checkout.Notification), args.Error(1)
}

type recordingNotifier struct {
	emitted []models.CheckoutStatus
}

func (r *recordingNotifier) Emit(c *models.Checkout) {
	r.emitted = append(r.emitted, c.Status)
}

type stubIssuer struct{}

func (stubIssuer) IssueToken(p *models.Participant) (string, error) {
	return "qr-" + p.Name, nil
}

const testSecret = "webhook-secret"

var testTopics = config.TopicConfig{
	CheckoutCreated:       "checkout.created",
	CheckoutStatusChanged: "checkout.status_changed",
	CheckoutApproved:      "checkout.approved",
}

type fixture struct {
	checkouts    *MockCheckoutDB
	participants *MockParticipantDB
	coupons      *MockCouponDB
	gateway      *MockGateway
	mailer       *MockMailer
	kafka        *MockKafkaProducer
	notifier     *recordingNotifier
	deps         checkout.Deps
}

func newFixture() *fixture {
	f := &fixture{
		checkouts:    new(MockCheckoutDB),
		participants: new(MockParticipantDB),
		coupons:      new(MockCouponDB),
		gateway:      new(MockGateway),
		mailer:       new(MockMailer),
		kafka:        new(MockKafkaProducer),
		notifier:     &recordingNotifier{},
	}
	f.deps = checkout.Deps{
		Checkouts:    f.checkouts,
		Participants: f.participants,
		Coupons:      f.coupons,
		Gateway:      f.gateway,
		Mailer:       f.mailer,
		Tokens:       stubIssuer{},
		Events:       f.kafka,
		Notifier:     f.notifier,
		Verifier:     checkout.NewSignatureVerifier(testSecret),
		Pricing:      checkout.DefaultPriceTable(),
		URLs:         checkout.RedirectURLs{Success: "https://shop.test/ok"},
		Topics:       testTopics,
		Lookup:       checkout.LookupPolicy{Attempts: 3, Delay: time.Millisecond},
		Logger:       logger.New(io.Discard),
	}
	return f
}

func (f *fixture) service() *checkout.CheckoutService {
	return checkout.NewCheckoutService(f.deps)
}

func (f *fixture) assertExpectations(t mock.TestingT) {
	f.checkouts.AssertExpectations(t)
	f.participants.AssertExpectations(t)
	f.coupons.AssertExpectations(t)
	f.gateway.AssertExpectations(t)
	f.mailer.AssertExpectations(t)
}
