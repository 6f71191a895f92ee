package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avasiliev/chatshop-system/internal/model"
	"github.com/avasiliev/chatshop-system/internal/repository"
	"github.com/avasiliev/chatshop-system/internal/validation"
)

type stubRepo struct {
	users      map[int64]*model.User
	usersByRef map[string]*model.User

	registerCreated    bool
	registerReferredBy *int64

	addPointsUser   int64
	addPointsAmount int64
	deductCalled    bool

	setRoleUser int64
	setRole     model.Role

	cartItems []model.CartItem
	coupon    *model.Coupon
	couponErr error

	checkoutKind     model.PaymentKind
	checkoutCode     *string
	checkoutDiscount int64
	checkoutResult   *repository.CheckoutResult
	checkoutErr      error

	pointsPayCalled   bool
	pointsPayDiscount int64
	pointsPayPerUnit  int64

	verifyCode   string
	verifyResult *repository.VerifiedPayment
	verifyErr    error

	order      *model.Order
	orderItems []model.OrderItem

	claimPoints   int64
	claimInterval time.Duration
	claimOK       bool
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) RegisterUser(ctx context.Context, userID int64, firstName, refCode string,
	referredBy *int64, referrerBonus, refereeBonus int64) (bool, error) {
	s.registerReferredBy = referredBy
	if s.registerCreated {
		if s.users == nil {
			s.users = make(map[int64]*model.User)
		}
		s.users[userID] = &model.User{ID: userID, FirstName: firstName, RefCode: refCode, Role: model.RoleUser}
	}
	return s.registerCreated, nil
}

func (s *stubRepo) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	if u, ok := s.users[userID]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (s *stubRepo) GetUserByRefCode(ctx context.Context, refCode string) (*model.User, error) {
	if u, ok := s.usersByRef[refCode]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (s *stubRepo) AddPoints(ctx context.Context, userID, points int64) error {
	s.addPointsUser = userID
	s.addPointsAmount = points
	return nil
}

func (s *stubRepo) DeductPoints(ctx context.Context, userID, points int64) error {
	s.deductCalled = true
	return nil
}

func (s *stubRepo) SetUserRole(ctx context.Context, userID int64, role model.Role) error {
	s.setRoleUser = userID
	s.setRole = role
	return nil
}

func (s *stubRepo) TouchUserActivity(ctx context.Context, userID int64) error { return nil }

func (s *stubRepo) ClaimDailyBonus(ctx context.Context, userID, points int64, minInterval time.Duration) (bool, error) {
	s.claimPoints = points
	s.claimInterval = minInterval
	return s.claimOK, nil
}

func (s *stubRepo) CreateCategory(ctx context.Context, name string, parentID *int64) (int64, error) {
	return 1, nil
}

func (s *stubRepo) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	return &model.Category{ID: id, Name: "cat"}, nil
}

func (s *stubRepo) ListChildCategories(ctx context.Context, parentID *int64) ([]model.Category, error) {
	return nil, nil
}

func (s *stubRepo) ListAllCategories(ctx context.Context) ([]model.Category, error) {
	return nil, nil
}

func (s *stubRepo) RenameCategory(ctx context.Context, id int64, newName string) error { return nil }

func (s *stubRepo) DeleteCategoryCascade(ctx context.Context, id int64) (int64, error) {
	return 0, nil
}

func (s *stubRepo) CreateProduct(ctx context.Context, in model.ProductInput) (int64, error) {
	return 1, nil
}

func (s *stubRepo) UpdateProduct(ctx context.Context, id int64, in model.ProductInput) error {
	return nil
}

func (s *stubRepo) ArchiveProduct(ctx context.Context, id int64) error { return nil }

func (s *stubRepo) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return nil, repository.ErrProductNotFound
}

func (s *stubRepo) ListProducts(ctx context.Context, categoryID *int64, includeArchived bool) ([]model.Product, error) {
	return nil, nil
}

func (s *stubRepo) SearchProducts(ctx context.Context, f model.SearchFilter) ([]model.Product, error) {
	return nil, nil
}

func (s *stubRepo) AddCartItem(ctx context.Context, userID, productID, qty int64) error { return nil }

func (s *stubRepo) RemoveCartItem(ctx context.Context, userID, productID, qty int64) error {
	return nil
}

func (s *stubRepo) GetCartItems(ctx context.Context, userID int64) ([]model.CartItem, error) {
	return s.cartItems, nil
}

func (s *stubRepo) ClearCart(ctx context.Context, userID int64) error { return nil }

func (s *stubRepo) CreateOrderFromCart(ctx context.Context, userID int64, kind model.PaymentKind,
	paymentCode *string, discountPercent, pointsPerUnit int64) (*repository.CheckoutResult, error) {
	s.checkoutKind = kind
	s.checkoutCode = paymentCode
	s.checkoutDiscount = discountPercent
	return s.checkoutResult, s.checkoutErr
}

func (s *stubRepo) PayCartWithPoints(ctx context.Context, userID int64,
	discountPercent, pointsPerUnit int64) (*repository.CheckoutResult, error) {
	s.pointsPayCalled = true
	s.pointsPayDiscount = discountPercent
	s.pointsPayPerUnit = pointsPerUnit
	return s.checkoutResult, s.checkoutErr
}

func (s *stubRepo) VerifyManualPayment(ctx context.Context, code string, referrerBonus int64) (*repository.VerifiedPayment, error) {
	s.verifyCode = code
	return s.verifyResult, s.verifyErr
}

func (s *stubRepo) RejectOrder(ctx context.Context, orderID int64) error { return nil }

func (s *stubRepo) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	if s.order == nil {
		return nil, repository.ErrOrderNotFound
	}
	return s.order, nil
}

func (s *stubRepo) ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return nil, nil
}

func (s *stubRepo) ListPendingOrders(ctx context.Context) ([]model.Order, error) { return nil, nil }

func (s *stubRepo) GetOrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	return s.orderItems, nil
}

func (s *stubRepo) CreateCoupon(ctx context.Context, code string, discountPercent int64) error {
	return nil
}

func (s *stubRepo) GetActiveCoupon(ctx context.Context, code string) (*model.Coupon, error) {
	if s.couponErr != nil {
		return nil, s.couponErr
	}
	if s.coupon == nil {
		return nil, repository.ErrCouponNotFound
	}
	return s.coupon, nil
}

func (s *stubRepo) DeleteCoupon(ctx context.Context, code string) error { return nil }

func (s *stubRepo) ListCoupons(ctx context.Context) ([]model.Coupon, error) { return nil, nil }

func (s *stubRepo) CreatePaymentMethod(ctx context.Context, name, details string) (int64, error) {
	return 1, nil
}

func (s *stubRepo) DeletePaymentMethod(ctx context.Context, id int64) error { return nil }

func (s *stubRepo) ListPaymentMethods(ctx context.Context) ([]model.PaymentMethod, error) {
	return nil, nil
}

func (s *stubRepo) QueueNotification(ctx context.Context, text string, segment model.Segment,
	customUserIDs []int64, scheduleAt *time.Time) (int64, error) {
	return 1, nil
}

type stubSender struct {
	sent    []string
	failFor map[string]error
}

func (s *stubSender) SendMessage(ctx context.Context, userID int64, text string) error { return nil }

func (s *stubSender) SendContent(ctx context.Context, userID int64, name, contentRef string) error {
	if err, ok := s.failFor[contentRef]; ok {
		return err
	}
	s.sent = append(s.sent, contentRef)
	return nil
}

func testConfig() Config {
	return Config{
		PointsPerUnit:         1000,
		ReferralBonus:         100,
		RefereeBonus:          50,
		ReferralPurchaseBonus: 100,
		DailyBonus:            10,
	}
}

func TestRegister_WithReferralCode(t *testing.T) {
	referrer := &model.User{ID: 10, RefCode: "ref-code", Role: model.RoleUser}
	repo := &stubRepo{
		registerCreated: true,
		users:           map[int64]*model.User{10: referrer},
		usersByRef:      map[string]*model.User{"ref-code": referrer},
	}
	svc := NewService(repo, nil, nil, testConfig())

	res, err := svc.Register(context.Background(), 1, "Anna", "ref-code")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Created || !res.Referred {
		t.Fatalf("expected created referred registration, got %+v", res)
	}
	if repo.registerReferredBy == nil || *repo.registerReferredBy != 10 {
		t.Fatalf("referrer id not passed to repository: %v", repo.registerReferredBy)
	}
}

func TestRegister_OwnRefCodeIgnored(t *testing.T) {
	self := &model.User{ID: 1, RefCode: "own", Role: model.RoleUser}
	repo := &stubRepo{
		registerCreated: true,
		users:           map[int64]*model.User{1: self},
		usersByRef:      map[string]*model.User{"own": self},
	}
	svc := NewService(repo, nil, nil, testConfig())

	res, err := svc.Register(context.Background(), 1, "Anna", "own")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Referred {
		t.Fatal("own referral code must be ignored")
	}
	if repo.registerReferredBy != nil {
		t.Fatalf("referrer must not be set, got %v", *repo.registerReferredBy)
	}
}

func TestRegister_RepeatedCallNotReferred(t *testing.T) {
	referrer := &model.User{ID: 10, RefCode: "ref-code", Role: model.RoleUser}
	repo := &stubRepo{
		registerCreated: false,
		users: map[int64]*model.User{
			1:  {ID: 1, Role: model.RoleUser},
			10: referrer,
		},
		usersByRef: map[string]*model.User{"ref-code": referrer},
	}
	svc := NewService(repo, nil, nil, testConfig())

	res, err := svc.Register(context.Background(), 1, "Anna", "ref-code")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Created || res.Referred {
		t.Fatalf("repeated registration must not re-credit bonuses: %+v", res)
	}
}

func TestAdjustPoints_RequiresStaff(t *testing.T) {
	repo := &stubRepo{
		users: map[int64]*model.User{
			1: {ID: 1, Role: model.RoleUser},
			2: {ID: 2, Role: model.RoleUser},
		},
	}
	svc := NewService(repo, nil, nil, testConfig())

	err := svc.AdjustPoints(context.Background(), 1, 2, 100, false)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestAdjustPoints_DeductPath(t *testing.T) {
	repo := &stubRepo{
		users: map[int64]*model.User{
			1: {ID: 1, Role: model.RoleAdmin},
			2: {ID: 2, Role: model.RoleUser},
		},
	}
	svc := NewService(repo, nil, nil, testConfig())

	if err := svc.AdjustPoints(context.Background(), 1, 2, 30, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.deductCalled {
		t.Fatal("deduction must go through DeductPoints")
	}
}

func TestSetRole_OwnerOnly(t *testing.T) {
	repo := &stubRepo{
		users: map[int64]*model.User{
			1: {ID: 1, Role: model.RoleAdmin},
			2: {ID: 2, Role: model.RoleUser},
		},
	}
	svc := NewService(repo, nil, nil, testConfig())

	err := svc.SetRole(context.Background(), 1, 2, model.RoleAdmin)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied for admin caller, got %v", err)
	}
}

func TestSetRole_OwnerImmutable(t *testing.T) {
	repo := &stubRepo{
		users: map[int64]*model.User{
			1: {ID: 1, Role: model.RoleOwner},
			2: {ID: 2, Role: model.RoleOwner},
			3: {ID: 3, Role: model.RoleUser},
		},
	}
	svc := NewService(repo, nil, nil, testConfig())

	if err := svc.SetRole(context.Background(), 1, 2, model.RoleUser); !errors.Is(err, ErrOwnerImmutable) {
		t.Fatalf("expected ErrOwnerImmutable for owner target, got %v", err)
	}
	if err := svc.SetRole(context.Background(), 1, 3, model.RoleOwner); !errors.Is(err, ErrOwnerImmutable) {
		t.Fatalf("expected ErrOwnerImmutable when assigning owner, got %v", err)
	}
	if err := svc.SetRole(context.Background(), 1, 3, model.RoleAdmin); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.setRoleUser != 3 || repo.setRole != model.RoleAdmin {
		t.Fatalf("role change not applied: user=%d role=%s", repo.setRoleUser, repo.setRole)
	}
}

func TestGetCart_TotalsWithCoupon(t *testing.T) {
	repo := &stubRepo{
		cartItems: []model.CartItem{
			{ProductID: 1, Quantity: 1, PriceCents: 1999},
		},
		coupon: &model.Coupon{Code: "SALE10", DiscountPercent: 10, Active: true},
	}
	svc := NewService(repo, nil, nil, testConfig())

	view, err := svc.GetCart(context.Background(), 1, "sale10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Totals.TotalCents != 1800 {
		t.Fatalf("expected total 1800, got %d", view.Totals.TotalCents)
	}
	if view.Totals.PointsCost != 17991 {
		t.Fatalf("expected points cost 17991, got %d", view.Totals.PointsCost)
	}
	if view.Coupon == nil || view.Coupon.Code != "SALE10" {
		t.Fatalf("coupon not attached to view: %+v", view.Coupon)
	}
}

func TestGetCart_DeactivatedCouponIgnored(t *testing.T) {
	repo := &stubRepo{
		cartItems: []model.CartItem{
			{ProductID: 1, Quantity: 2, PriceCents: 500},
		},
		couponErr: repository.ErrCouponNotFound,
	}
	svc := NewService(repo, nil, nil, testConfig())

	view, err := svc.GetCart(context.Background(), 1, "GONE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Coupon != nil {
		t.Fatal("deactivated coupon must not apply")
	}
	if view.Totals.TotalCents != 1000 {
		t.Fatalf("expected undiscounted total 1000, got %d", view.Totals.TotalCents)
	}
}

func TestCheckout_ManualGeneratesPaymentCode(t *testing.T) {
	repo := &stubRepo{
		checkoutResult: &repository.CheckoutResult{OrderID: 7, TotalCents: 1800, PointsCost: 17991},
	}
	svc := NewService(repo, nil, nil, testConfig())

	res, err := svc.Checkout(context.Background(), 1, model.PaymentKindManual, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.PaymentCode == "" {
		t.Fatal("manual checkout must produce a payment code")
	}
	if !validation.IsValidPaymentCode(res.PaymentCode) {
		t.Fatalf("payment code has wrong shape: %q", res.PaymentCode)
	}
	if repo.checkoutCode == nil || *repo.checkoutCode != res.PaymentCode {
		t.Fatal("payment code not passed to repository")
	}
}

func TestCheckout_PointsHasNoPaymentCode(t *testing.T) {
	repo := &stubRepo{
		checkoutResult: &repository.CheckoutResult{OrderID: 7, TotalCents: 1000, PointsCost: 10000},
	}
	svc := NewService(repo, nil, nil, testConfig())

	res, err := svc.Checkout(context.Background(), 1, model.PaymentKindPoints, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.PaymentCode != "" {
		t.Fatalf("points checkout must not produce a payment code, got %q", res.PaymentCode)
	}
	if !repo.pointsPayCalled {
		t.Fatal("points checkout must go through PayCartWithPoints")
	}
	if repo.checkoutCode != nil {
		t.Fatal("payment code must not be passed for points payment")
	}
	if repo.pointsPayPerUnit != 1000 {
		t.Fatalf("expected configured points rate 1000, got %d", repo.pointsPayPerUnit)
	}
}

func TestCheckout_CouponDiscountForwarded(t *testing.T) {
	repo := &stubRepo{
		coupon:         &model.Coupon{Code: "SALE10", DiscountPercent: 10, Active: true},
		checkoutResult: &repository.CheckoutResult{OrderID: 7},
	}
	svc := NewService(repo, nil, nil, testConfig())

	if _, err := svc.Checkout(context.Background(), 1, model.PaymentKindPoints, "SALE10"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.pointsPayDiscount != 10 {
		t.Fatalf("expected discount 10, got %d", repo.pointsPayDiscount)
	}
	if _, err := svc.Checkout(context.Background(), 1, model.PaymentKindManual, "SALE10"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.checkoutDiscount != 10 {
		t.Fatalf("expected discount 10 for manual checkout, got %d", repo.checkoutDiscount)
	}
}

func TestVerifyManualPayment_RejectsMalformedCode(t *testing.T) {
	repo := &stubRepo{
		users: map[int64]*model.User{1: {ID: 1, Role: model.RoleAdmin}},
	}
	svc := NewService(repo, nil, nil, testConfig())

	_, err := svc.VerifyManualPayment(context.Background(), 1, "not-a-code")
	if !errors.Is(err, repository.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
	if repo.verifyCode != "" {
		t.Fatal("malformed code must not reach the repository")
	}
}

func TestVerifyManualPayment_RequiresStaff(t *testing.T) {
	repo := &stubRepo{
		users: map[int64]*model.User{1: {ID: 1, Role: model.RoleUser}},
	}
	svc := NewService(repo, nil, nil, testConfig())

	_, err := svc.VerifyManualPayment(context.Background(), 1, "0f8fad5b-d9cb-469f-a165-70867728950e")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestFulfillOrder_CollectsPerItemFailures(t *testing.T) {
	repo := &stubRepo{
		order: &model.Order{ID: 7, UserID: 1, Status: model.OrderStatusAccepted},
		orderItems: []model.OrderItem{
			{ProductID: 1, Name: "Курс A", ContentRef: "ref-a"},
			{ProductID: 2, Name: "Курс B", ContentRef: "ref-b"},
			{ProductID: 3, Name: "Стикеры", ContentRef: ""},
		},
	}
	sender := &stubSender{failFor: map[string]error{"ref-b": errors.New("gateway down")}}
	svc := NewService(repo, nil, sender, testConfig())

	failures, err := svc.FulfillOrder(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failures) != 1 || failures[0].ProductID != 2 {
		t.Fatalf("expected a single failure for product 2, got %+v", failures)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "ref-a" {
		t.Fatalf("delivery must continue past failures, sent %v", sender.sent)
	}
}

func TestFulfillOrder_RequiresAcceptedOrder(t *testing.T) {
	repo := &stubRepo{
		order: &model.Order{ID: 7, UserID: 1, Status: model.OrderStatusPending},
	}
	svc := NewService(repo, nil, &stubSender{}, testConfig())

	_, err := svc.FulfillOrder(context.Background(), 7)
	if !errors.Is(err, ErrOrderNotAccepted) {
		t.Fatalf("expected ErrOrderNotAccepted, got %v", err)
	}
}

func TestFulfillOrder_NoSenderConfigured(t *testing.T) {
	svc := NewService(&stubRepo{}, nil, nil, testConfig())

	_, err := svc.FulfillOrder(context.Background(), 7)
	if !errors.Is(err, ErrSenderUnavailable) {
		t.Fatalf("expected ErrSenderUnavailable, got %v", err)
	}
}

func TestClaimDailyBonus_UsesConfiguredAmount(t *testing.T) {
	repo := &stubRepo{claimOK: true}
	svc := NewService(repo, nil, nil, testConfig())

	ok, err := svc.ClaimDailyBonus(context.Background(), 1)
	if err != nil || !ok {
		t.Fatalf("unexpected result: ok=%v err=%v", ok, err)
	}
	if repo.claimPoints != 10 {
		t.Fatalf("expected configured bonus 10, got %d", repo.claimPoints)
	}
	if repo.claimInterval != 24*time.Hour {
		t.Fatalf("expected 24h interval, got %v", repo.claimInterval)
	}
}

func TestAddCoupon_ValidatesDiscount(t *testing.T) {
	repo := &stubRepo{
		users: map[int64]*model.User{1: {ID: 1, Role: model.RoleAdmin}},
	}
	svc := NewService(repo, nil, nil, testConfig())

	if err := svc.AddCoupon(context.Background(), 1, "X", 101); !errors.Is(err, validation.ErrBadInput) {
		t.Fatalf("expected ErrBadInput for discount over 100, got %v", err)
	}
	if err := svc.AddCoupon(context.Background(), 1, "  ", 10); !errors.Is(err, validation.ErrBadInput) {
		t.Fatalf("expected ErrBadInput for blank code, got %v", err)
	}
}

func TestAddCategory_ValidatesName(t *testing.T) {
	repo := &stubRepo{
		users: map[int64]*model.User{1: {ID: 1, Role: model.RoleAdmin}},
	}
	svc := NewService(repo, nil, nil, testConfig())

	if _, err := svc.AddCategory(context.Background(), 1, "   ", nil); !errors.Is(err, validation.ErrBadInput) {
		t.Fatalf("expected ErrBadInput for blank name, got %v", err)
	}
}

func TestAddProduct_RejectsInvalidInput(t *testing.T) {
	repo := &stubRepo{
		users: map[int64]*model.User{1: {ID: 1, Role: model.RoleAdmin}},
	}
	svc := NewService(repo, nil, nil, testConfig())

	_, err := svc.AddProduct(context.Background(), 1, model.ProductInput{Name: "", PriceCents: 100})
	if !errors.Is(err, validation.ErrBadInput) {
		t.Fatalf("expected ErrBadInput for empty name, got %v", err)
	}
	_, err = svc.AddProduct(context.Background(), 1, model.ProductInput{Name: "x", PriceCents: -1})
	if !errors.Is(err, validation.ErrBadInput) {
		t.Fatalf("expected ErrBadInput for negative price, got %v", err)
	}
}
