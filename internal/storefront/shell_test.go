package storefront_test

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"testing"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/imrishuroy/glaze-storefront/internal/apperr"
	"github.com/imrishuroy/glaze-storefront/internal/catalog"
	"github.com/imrishuroy/glaze-storefront/internal/checkout"
	"github.com/imrishuroy/glaze-storefront/internal/orders"
	"github.com/imrishuroy/glaze-storefront/internal/storefront/storefronttest"
	"github.com/imrishuroy/glaze-storefront/internal/validation"
	"github.com/shopspring/decimal"
)

const sid = "session-1"

func add(t *testing.T, h *storefronttest.Harness, s, productID string) {
	t.Helper()
	if _, err := h.Shell.AddToCart(context.Background(), s, validation.CartItemRequest{ProductID: productID}); err != nil {
		t.Fatalf("AddToCart(%s): %v", productID, err)
	}
}

func shipping() validation.ShippingRequest {
	return validation.ShippingRequest{
		Name:    "Ada Wanjiru",
		Email:   "ada@glaze.test",
		Phone:   "0712345678",
		Address: "12 Moi Avenue",
		City:    "Nairobi",
	}
}

// payByPayPal drives the wizard from start to a recorded order.
func payByPayPal(t *testing.T, h *storefronttest.Harness, s string) checkout.View {
	t.Helper()
	ctx := context.Background()
	if _, err := h.Shell.StartCheckout(ctx, s); err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}
	if _, err := h.Shell.SubmitShipping(s, shipping()); err != nil {
		t.Fatalf("SubmitShipping: %v", err)
	}
	if _, err := h.Shell.SelectMethod(s, validation.MethodRequest{Method: "paypal"}); err != nil {
		t.Fatalf("SelectMethod: %v", err)
	}
	v, err := h.Shell.PayWithPayPal(ctx, s)
	if err != nil {
		t.Fatalf("PayWithPayPal: %v", err)
	}
	if v.Step != checkout.StepProcessing || v.RedirectURL == "" {
		t.Fatalf("expected processing with a redirect, got %+v", v)
	}
	h.Clock.Advance(5 * time.Second)
	v, err = h.Shell.Checkout(s)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if v.Step != checkout.StepSuccess || v.OrderID == "" {
		t.Fatalf("expected success, got %+v", v)
	}
	return v
}

func TestCart_AddRemoveTotal(t *testing.T) {
	h := storefronttest.New(t)
	ctx := context.Background()

	v, err := h.Shell.AddToCart(ctx, sid, validation.CartItemRequest{ProductID: "p1"})
	if err != nil {
		t.Fatalf("AddToCart: %v", err)
	}
	if !v.Opened {
		t.Fatalf("first add should open the cart")
	}
	add(t, h, sid, "p1")
	add(t, h, sid, "p4")

	v = h.Shell.RemoveFromCart(sid, "missing")
	if len(v.Items) != 2 || v.Items[0].Quantity != 2 {
		t.Fatalf("unexpected cart %+v", v.Items)
	}
	if v.Count != 3 || !v.Total.Equal(decimal.NewFromInt(58)) {
		t.Fatalf("expected 3 items totalling 58, got %d / %s", v.Count, v.Total)
	}

	if _, err := h.Shell.AddToCart(ctx, sid, validation.CartItemRequest{ProductID: "nope"}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found for unknown product, got %v", err)
	}
	if v := h.Shell.RemoveFromCart(sid, "p1"); v.Count != 1 {
		t.Fatalf("expected the p1 line removed, count %d", v.Count)
	}
}

func TestCart_IsolatedPerSession(t *testing.T) {
	h := storefronttest.New(t)
	add(t, h, "a", "p1")
	if v := h.Shell.Cart("b"); v.Count != 0 {
		t.Fatalf("session b should have an empty cart, got %d", v.Count)
	}
}

func TestCheckout_RequiresLogin(t *testing.T) {
	h := storefronttest.New(t)
	add(t, h, sid, "p1")
	_, err := h.Shell.StartCheckout(context.Background(), sid)
	if apperr.KindOf(err) != apperr.KindUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestCheckout_FailedOrderWriteKeepsCartAndAllowsRetry(t *testing.T) {
	h := storefronttest.New(t)
	h.ConfigureIntegrations(t)
	ctx := context.Background()
	h.Login(t, sid, "Ada", "ada@glaze.test")
	add(t, h, sid, "p1")

	if _, err := h.Shell.StartCheckout(ctx, sid); err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}
	if _, err := h.Shell.SubmitShipping(sid, shipping()); err != nil {
		t.Fatalf("SubmitShipping: %v", err)
	}
	if _, err := h.Shell.SelectMethod(sid, validation.MethodRequest{Method: "paypal"}); err != nil {
		t.Fatalf("SelectMethod: %v", err)
	}
	if _, err := h.Shell.PayWithPayPal(ctx, sid); err != nil {
		t.Fatalf("PayWithPayPal: %v", err)
	}
	h.Dynamo.FailOn["TransactWriteItems"] = &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{
			{Code: sdkaws.String("None")},
			{Code: sdkaws.String("ThrottlingError")},
		},
	}
	h.Clock.Advance(5 * time.Second)

	v, err := h.Shell.Checkout(sid)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	if v.Step != checkout.StepSelectMethod || v.OrderID != "" || v.Error == "" {
		t.Fatalf("expected a retryable method step, got %+v", v)
	}
	if c := h.Shell.Cart(sid); c.Count != 1 {
		t.Fatalf("cart must survive a failed order write, got %d", c.Count)
	}
	if n := len(h.SQS.Bodies()); n != 0 {
		t.Fatalf("no event may be published without an order, got %d", n)
	}

	delete(h.Dynamo.FailOn, "TransactWriteItems")
	if _, err := h.Shell.SelectMethod(sid, validation.MethodRequest{Method: "paypal"}); err != nil {
		t.Fatalf("SelectMethod retry: %v", err)
	}
	if _, err := h.Shell.PayWithPayPal(ctx, sid); err != nil {
		t.Fatalf("PayWithPayPal retry: %v", err)
	}
	h.Clock.Advance(5 * time.Second)
	v, err = h.Shell.Checkout(sid)
	if err != nil || v.Step != checkout.StepSuccess {
		t.Fatalf("expected success on retry, got %+v %v", v, err)
	}
	if o, err := h.Shell.Orders.Get(ctx, v.OrderID); err != nil || o == nil {
		t.Fatalf("order %s not stored: %v", v.OrderID, err)
	}
}

func TestCheckout_PlacesOneOrderAndClearsCart(t *testing.T) {
	h := storefronttest.New(t)
	h.ConfigureIntegrations(t)
	ctx := context.Background()
	h.Login(t, sid, "Ada", "ada@glaze.test")
	add(t, h, sid, "p1")
	add(t, h, sid, "p1")
	add(t, h, sid, "p4")

	v := payByPayPal(t, h, sid)

	if c := h.Shell.Cart(sid); c.Count != 0 {
		t.Fatalf("cart should be empty after checkout, got %d", c.Count)
	}
	add(t, h, sid, "p6")

	mine, err := h.Shell.MyOrders(ctx, sid)
	if err != nil {
		t.Fatalf("MyOrders: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != v.OrderID {
		t.Fatalf("expected exactly the new order, got %+v", mine)
	}
	o := mine[0]
	if o.Status != orders.StatusPending || o.PaymentMethod != orders.MethodPayPal {
		t.Fatalf("unexpected order %+v", o)
	}
	if !o.Total.Equal(decimal.NewFromInt(58)) || len(o.Items) != 2 || o.Customer.City != "Nairobi" {
		t.Fatalf("snapshot changed: %+v", o)
	}

	if n := len(h.SQS.Bodies()); n != 1 {
		t.Fatalf("expected one order event, got %d", n)
	}
	if got := h.CloudWatch.Sum("OrdersPlaced"); got != 1 {
		t.Fatalf("expected OrdersPlaced 1, got %v", got)
	}

	h.Clock.Advance(3 * time.Second)
	if _, err := h.Shell.Checkout(sid); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("checkout should be gone after the success display, got %v", err)
	}
}

func TestCheckout_SimulatedMobileMoney(t *testing.T) {
	h := storefronttest.New(t)
	h.ConfigureIntegrations(t)
	ctx := context.Background()
	h.Login(t, sid, "Ada", "ada@glaze.test")
	add(t, h, sid, "p2")

	if _, err := h.Shell.StartCheckout(ctx, sid); err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}
	if _, err := h.Shell.SubmitShipping(sid, shipping()); err != nil {
		t.Fatalf("SubmitShipping: %v", err)
	}
	if _, err := h.Shell.SelectMethod(sid, validation.MethodRequest{Method: "mpesa"}); err != nil {
		t.Fatalf("SelectMethod: %v", err)
	}
	if _, err := h.Shell.PayWithMobileMoney(ctx, sid, validation.MobileMoneyRequest{Phone: "0712 345 678"}); err != nil {
		t.Fatalf("PayWithMobileMoney: %v", err)
	}
	if err := h.Shell.CloseCheckout(sid); apperr.KindOf(err) != apperr.KindLocked {
		t.Fatalf("expected the wizard locked while paying, got %v", err)
	}
	h.Clock.Advance(7 * time.Second)

	all, err := h.Shell.AllOrders(ctx)
	if err != nil {
		t.Fatalf("AllOrders: %v", err)
	}
	if len(all) != 1 || all[0].PaymentMethod != orders.MethodMpesa {
		t.Fatalf("expected one mobile money order, got %+v", all)
	}
}

func TestLogout_KeepsAccountsAndOrders(t *testing.T) {
	h := storefronttest.New(t)
	h.ConfigureIntegrations(t)
	ctx := context.Background()
	h.Login(t, sid, "Ada", "ada@glaze.test")
	add(t, h, sid, "p3")
	payByPayPal(t, h, sid)
	add(t, h, sid, "p5")

	if err := h.Shell.Logout(ctx, sid); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if u, _ := h.Shell.User(ctx, sid); u != nil {
		t.Fatalf("expected logged out, got %+v", u)
	}
	if c := h.Shell.Cart(sid); c.Count != 0 {
		t.Fatalf("logout should empty the cart")
	}

	if _, err := h.Shell.Login(ctx, sid, validation.LoginRequest{Email: "ada@glaze.test", Password: "secret1"}); err != nil {
		t.Fatalf("Login after logout: %v", err)
	}
	mine, err := h.Shell.MyOrders(ctx, sid)
	if err != nil || len(mine) != 1 {
		t.Fatalf("order history lost: %v %+v", err, mine)
	}
}

func TestSession_RestoredByNewShell(t *testing.T) {
	h := storefronttest.New(t)
	h.ConfigureIntegrations(t)
	ctx := context.Background()
	h.Login(t, sid, "Ada", "ada@glaze.test")

	restarted := h.Restart()
	u, err := restarted.User(ctx, sid)
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if u == nil || u.Email != "ada@glaze.test" {
		t.Fatalf("expected the session restored, got %+v", u)
	}
	if u, _ := restarted.User(ctx, "other"); u != nil {
		t.Fatalf("unknown session should be logged out")
	}
}

func TestAnonymousReadsHoldNoState(t *testing.T) {
	h := storefronttest.New(t)
	ctx := context.Background()
	for i := 0; i < 500; i++ {
		id := fmt.Sprintf("anon-%d", i)
		h.Shell.Cart(id)
		h.Shell.RemoveFromCart(id, "p1")
		if u, err := h.Shell.User(ctx, id); err != nil || u != nil {
			t.Fatalf("User(%s) = %+v %v", id, u, err)
		}
	}
	if n := h.Shell.SessionCount(); n != 0 {
		t.Fatalf("anonymous reads kept %d sessions", n)
	}
}

func TestSweepDropsIdleSessions(t *testing.T) {
	h := storefronttest.New(t)
	h.ConfigureIntegrations(t)
	ctx := context.Background()

	add(t, h, "shopper", "p1")
	h.Login(t, sid, "Ada", "ada@glaze.test")
	h.Login(t, "paying", "Bea", "bea@glaze.test")
	add(t, h, "paying", "p2")
	if _, err := h.Shell.StartCheckout(ctx, "paying"); err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}

	now := time.Now()
	if n := h.Shell.Sweep(now.Add(31 * time.Minute)); n != 1 {
		t.Fatalf("expected only the logged-in empty session swept, got %d", n)
	}
	if c := h.Shell.Cart("shopper"); c.Count != 1 {
		t.Fatalf("a filled cart must outlive a short idle period, got %d", c.Count)
	}
	if u, err := h.Shell.User(ctx, sid); err != nil || u == nil || u.Email != "ada@glaze.test" {
		t.Fatalf("swept identity should come back from the session store: %+v %v", u, err)
	}

	h.Shell.Sweep(now.Add(25 * time.Hour))
	if c := h.Shell.Cart("shopper"); c.Count != 0 {
		t.Fatalf("abandoned cart should be dropped, got %d", c.Count)
	}
	if _, err := h.Shell.Checkout("paying"); err != nil {
		t.Fatalf("open checkout must survive the sweep: %v", err)
	}
	if c := h.Shell.Cart("paying"); c.Count != 1 {
		t.Fatalf("cart behind an open checkout was dropped")
	}
}

func TestLogoutReleasesSessionState(t *testing.T) {
	h := storefronttest.New(t)
	h.ConfigureIntegrations(t)
	h.Login(t, sid, "Ada", "ada@glaze.test")
	add(t, h, sid, "p1")
	if err := h.Shell.Logout(context.Background(), sid); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if n := h.Shell.SessionCount(); n != 0 {
		t.Fatalf("logout kept %d sessions", n)
	}
}

func TestRequireAdmin(t *testing.T) {
	h := storefronttest.New(t)
	h.ConfigureIntegrations(t)
	ctx := context.Background()

	if err := h.Shell.RequireAdmin(ctx, "guest"); apperr.KindOf(err) != apperr.KindUnauthenticated {
		t.Fatalf("guest: expected unauthenticated, got %v", err)
	}
	h.Login(t, "customer", "Ada", "ada@glaze.test")
	if err := h.Shell.RequireAdmin(ctx, "customer"); apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("customer: expected forbidden, got %v", err)
	}
	h.Login(t, "owner", "Owner", "admin@glaze.test")
	if err := h.Shell.RequireAdmin(ctx, "owner"); err != nil {
		t.Fatalf("allow-listed admin rejected: %v", err)
	}
	if _, err := h.Shell.DemoLogin(ctx, "demo"); err != nil {
		t.Fatalf("DemoLogin: %v", err)
	}
	if err := h.Shell.RequireAdmin(ctx, "demo"); err != nil {
		t.Fatalf("demo admin rejected: %v", err)
	}
}

func TestFederatedLogin(t *testing.T) {
	h := storefronttest.New(t)
	h.ConfigureIntegrations(t)
	ctx := context.Background()

	if _, err := h.Shell.FederatedLogin(ctx, sid, validation.OAuthRequest{IDToken: "forged"}); apperr.KindOf(err) != apperr.KindCredential {
		t.Fatalf("expected credential error for a bad token, got %v", err)
	}
	u, err := h.Shell.FederatedLogin(ctx, sid, validation.OAuthRequest{IDToken: storefronttest.GoodToken})
	if err != nil {
		t.Fatalf("FederatedLogin: %v", err)
	}
	if u.Email != "gina@glaze.test" || u.Avatar == "" {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestCreateProduct_MovesUploadToMediaStorage(t *testing.T) {
	h := storefronttest.New(t)
	ctx := context.Background()
	upload := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("tiny-png"))

	p, err := h.Shell.CreateProduct(ctx, validation.ProductRequest{
		ID:    "p9",
		Name:  "Rose Dew",
		Price: decimal.NewFromInt(20),
		Image: upload,
	})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	if !strings.HasPrefix(p.Image, storefronttest.MediaURL+"/images/p9-") {
		t.Fatalf("expected a media URL, got %.60s", p.Image)
	}
	key := strings.TrimPrefix(p.Image, storefronttest.MediaURL+"/")
	if _, err := h.S3.GetObject(ctx, &s3.GetObjectInput{Bucket: sdkaws.String(storefronttest.MediaBucket), Key: &key}); err != nil {
		t.Fatalf("upload not stored: %v", err)
	}
	stored, err := h.Shell.Catalog.Get(ctx, "p9")
	if err != nil || stored.Image != p.Image {
		t.Fatalf("catalog should keep the URL: %+v %v", stored, err)
	}
}

func TestOrderSnapshotDropsEmbeddedImages(t *testing.T) {
	h := storefronttest.New(t)
	h.ConfigureIntegrations(t)
	ctx := context.Background()
	// A product saved with an embedded image before uploads moved to media storage.
	if _, err := h.Shell.Catalog.Create(ctx, catalog.Product{
		ID:    "legacy",
		Name:  "Old Gloss",
		Price: decimal.NewFromInt(12),
		Image: "data:image/png;base64,AAAA",
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	h.Login(t, sid, "Ada", "ada@glaze.test")
	add(t, h, sid, "legacy")
	add(t, h, sid, "p1")
	v := payByPayPal(t, h, sid)

	o, err := h.Shell.Orders.Get(ctx, v.OrderID)
	if err != nil || o == nil {
		t.Fatalf("Get: %v", err)
	}
	if o.Items[0].Image != "" {
		t.Fatalf("embedded image kept in the order: %.40s", o.Items[0].Image)
	}
	if o.Items[1].Image == "" {
		t.Fatalf("image URLs must be kept")
	}
}

func TestDeleteProduct_LeavesOrdersAndReviews(t *testing.T) {
	h := storefronttest.New(t)
	h.ConfigureIntegrations(t)
	ctx := context.Background()
	h.Login(t, sid, "Ada", "ada@glaze.test")
	add(t, h, sid, "p1")
	payByPayPal(t, h, sid)

	before, err := h.Shell.ProductReviews(ctx, "p1")
	if err != nil {
		t.Fatalf("ProductReviews: %v", err)
	}
	if err := h.Shell.DeleteProduct(ctx, "p1"); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}
	if _, err := h.Shell.Product(ctx, "p1"); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("deleted product still served: %v", err)
	}
	after, err := h.Shell.ProductReviews(ctx, "p1")
	if err != nil || len(after) != len(before) {
		t.Fatalf("reviews changed: %d -> %d (%v)", len(before), len(after), err)
	}
	all, err := h.Shell.AllOrders(ctx)
	if err != nil || len(all) != 1 || all[0].Items[0].Name == "" {
		t.Fatalf("order snapshot lost: %v %+v", err, all)
	}
}

func TestAddReview_UsesAccountName(t *testing.T) {
	h := storefronttest.New(t)
	h.ConfigureIntegrations(t)
	ctx := context.Background()

	guest, err := h.Shell.AddReview(ctx, "guest", "p2", validation.ReviewRequest{Author: "Wanjiku", Rating: 4, Comment: "lovely"})
	if err != nil {
		t.Fatalf("guest AddReview: %v", err)
	}
	if guest.Author != "Wanjiku" {
		t.Fatalf("expected guest author, got %q", guest.Author)
	}

	h.Login(t, sid, "Ada", "ada@glaze.test")
	r, err := h.Shell.AddReview(ctx, sid, "p2", validation.ReviewRequest{Author: "Someone Else", Rating: 5, Comment: "best gloss"})
	if err != nil {
		t.Fatalf("AddReview: %v", err)
	}
	if r.Author != "Ada" {
		t.Fatalf("expected the account name, got %q", r.Author)
	}

	if _, err := h.Shell.AddReview(ctx, sid, "p2", validation.ReviewRequest{Rating: 0, Comment: "x"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected rating 0 rejected, got %v", err)
	}
	if _, err := h.Shell.AddReview(ctx, sid, "ghost", validation.ReviewRequest{Rating: 3, Comment: "x"}); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected unknown product rejected, got %v", err)
	}

	list, err := h.Shell.ProductReviews(ctx, "p2")
	if err != nil || list[0].Author != "Ada" {
		t.Fatalf("expected newest review first: %v %+v", err, list)
	}
}

func TestSetOrderStatus(t *testing.T) {
	h := storefronttest.New(t)
	h.ConfigureIntegrations(t)
	ctx := context.Background()
	h.Login(t, sid, "Ada", "ada@glaze.test")
	add(t, h, sid, "p1")
	v := payByPayPal(t, h, sid)

	if _, err := h.Shell.SetOrderStatus(ctx, v.OrderID, validation.StatusRequest{Status: "SHIPPED"}); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("PENDING cannot skip to SHIPPED, got %v", err)
	}
	for _, next := range []orders.Status{orders.StatusProcessing, orders.StatusShipped} {
		o, err := h.Shell.SetOrderStatus(ctx, v.OrderID, validation.StatusRequest{Status: string(next)})
		if err != nil {
			t.Fatalf("SetOrderStatus(%s): %v", next, err)
		}
		if o.Status != next {
			t.Fatalf("expected %s, got %s", next, o.Status)
		}
	}
	if _, err := h.Shell.SetOrderStatus(ctx, v.OrderID, validation.StatusRequest{Status: "LOST"}); apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAdminSettings_Masked(t *testing.T) {
	h := storefronttest.New(t)
	h.ConfigureIntegrations(t)
	st, err := h.Shell.AdminSettings(context.Background())
	if err != nil {
		t.Fatalf("AdminSettings: %v", err)
	}
	if st.GeminiAPIKey != "****1234" || st.PayPalRecipient != "shop@glaze.test" {
		t.Fatalf("unexpected masking %+v", st)
	}
}

func TestBackup_RoundTrip(t *testing.T) {
	h := storefronttest.New(t)
	h.ConfigureIntegrations(t)
	ctx := context.Background()

	info, err := h.Shell.CreateBackup(ctx)
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}
	if err := h.Shell.DeleteProduct(ctx, "p6"); err != nil {
		t.Fatalf("DeleteProduct: %v", err)
	}
	rep, err := h.Shell.RestoreBackup(ctx, validation.RestoreRequest{Key: info.Key})
	if err != nil {
		t.Fatalf("RestoreBackup: %v", err)
	}
	if rep.Products != 6 {
		t.Fatalf("expected 6 products restored, got %d", rep.Products)
	}
	if _, err := h.Shell.Product(ctx, "p6"); err != nil {
		t.Fatalf("p6 not restored: %v", err)
	}
}

func TestRecommend(t *testing.T) {
	h := storefronttest.New(t)
	h.ConfigureIntegrations(t)
	a, err := h.Shell.Recommend(context.Background(), validation.RecommendRequest{Text: "warm and sunny"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if a.Product.ID != "p2" || a.Reasoning == "" {
		t.Fatalf("unexpected advice %+v", a)
	}
}
