package validation

import "github.com/shopspring/decimal"

// CartItemRequest is the payload for POST /cart/items.
type CartItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}

// ProductRequest is the payload for POST /admin/products and PUT /admin/products/:id.
type ProductRequest struct {
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name" validate:"required"`
	Price       decimal.Decimal `json:"price" validate:"gt=0"` // the form rejects empty and zero prices
	Shade       string          `json:"shade"`
	Description string          `json:"description"`
	Image       string          `json:"image" validate:"omitempty,max=1500000,url|datauri"` // data URIs are moved to media storage
	Hex         string          `json:"hex" validate:"omitempty,hexrgb"`
}

// ReviewRequest is the payload for POST /products/:id/reviews.
// Author is only read for guests.
type ReviewRequest struct {
	Author  string `json:"author"`
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"required"`
}

// SignupRequest is the payload for POST /auth/signup.
type SignupRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// VerifyRequest is the payload for POST /auth/signup/verify.
type VerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// LoginRequest is the payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ForgotRequest is the payload for POST /auth/password/forgot.
type ForgotRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetRequest is the payload for POST /auth/password/reset.
type ResetRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
	Password string `json:"password" validate:"required,min=6"`
}

// OAuthRequest is the payload for POST /auth/oauth.
type OAuthRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// ShippingRequest is the payload for PUT /checkout/shipping.
type ShippingRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required"`
	Address string `json:"address" validate:"required"`
	City    string `json:"city" validate:"required"`
}

// MethodRequest is the payload for PUT /checkout/method.
type MethodRequest struct {
	Method string `json:"method" validate:"required,oneof=paypal mpesa"`
}

// MobileMoneyRequest is the payload for POST /checkout/mobile-money.
// Phone is only used by the simulated push flow.
type MobileMoneyRequest struct {
	Phone string `json:"phone"`
}

// GatewayRequest is the payment widget callback posted to POST /checkout/gateway.
type GatewayRequest struct {
	Result    string `json:"result" validate:"required,oneof=complete failed"`
	Reference string `json:"reference"`
}

// StatusRequest is the payload for PATCH /admin/orders/:id/status.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING PROCESSING SHIPPED DELIVERED CANCELLED"`
}

// RecommendRequest is the payload for POST /consultant/recommend.
type RecommendRequest struct {
	Text        string `json:"text"`
	ImageBase64 string `json:"image_base64" validate:"omitempty,base64"`
	MimeType    string `json:"mime_type" validate:"omitempty,oneof=image/jpeg image/png image/webp"`
}

// RestoreRequest is the payload for POST /admin/backups/restore.
type RestoreRequest struct {
	Key string `json:"key" validate:"required"`
}

// SettingsRequest is the payload for PUT /admin/settings. Nil fields are left unchanged.
type SettingsRequest struct {
	GeminiAPIKey        *string `json:"gemini_api_key"`
	OAuthClientID       *string `json:"oauth_client_id"`
	EmailServiceID      *string `json:"email_service_id"`
	EmailSignupTemplate *string `json:"email_signup_template"`
	EmailResetTemplate  *string `json:"email_reset_template"`
	EmailOrderTemplate  *string `json:"email_order_template"`
	EmailPublicKey      *string `json:"email_public_key"`
	PayPalRecipient     *string `json:"paypal_recipient" validate:"omitempty,email"`
	MpesaBusinessNumber *string `json:"mpesa_business_number" validate:"omitempty,numeric"`
	MpesaType           *string `json:"mpesa_type"`
	GatewayPublicKey    *string `json:"gateway_public_key"`
	GatewayLive         *bool   `json:"gateway_live"`
}
