package service

import (
	"context"
	"errors"
	"testing"

	"checkout-fulfillment/internal/core/domain"
	"checkout-fulfillment/internal/core/ports"
	"checkout-fulfillment/internal/core/ports/mocks"
	"checkout-fulfillment/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type checkoutTestDeps struct {
	svc      *CheckoutServiceImpl
	users    *mocks.MockUserRepository
	provider *mocks.MockPaymentProvider
	ctrl     *gomock.Controller
}

func setupCheckout(t *testing.T) *checkoutTestDeps {
	ctrl := gomock.NewController(t)
	d := &checkoutTestDeps{
		users:    mocks.NewMockUserRepository(ctrl),
		provider: mocks.NewMockPaymentProvider(ctrl),
		ctrl:     ctrl,
	}
	d.svc = NewCheckoutService(d.users, d.provider, testCatalog(),
		"https://shop.example/success", "https://shop.example/cancel", zerolog.Nop())
	return d
}

func TestCheckoutService_StartCheckout_Success(t *testing.T) {
	d := setupCheckout(t)
	defer d.ctrl.Finish()
	ctx := context.Background()

	user := &domain.User{ID: "u1", Username: "ada", Email: "ada@example.com"}
	d.users.EXPECT().GetUser(ctx, "u1").Return(user, nil)
	d.provider.EXPECT().CreateCustomer(ctx, user).Return("cus_1", nil)
	d.provider.EXPECT().CreateCheckoutSession(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, req ports.CheckoutSessionRequest) (*ports.CheckoutSessionResult, error) {
			assert.Equal(t, "cus_1", req.CustomerID)
			assert.Equal(t, "u1", req.UserID)
			assert.Equal(t, int64(1000), req.Product.Amount, "price comes from the catalog")
			assert.Equal(t, domain.ProductTypeCredentialed, req.Product.Type)
			assert.Equal(t, "https://shop.example/success", req.SuccessURL)
			assert.Equal(t, "https://shop.example/cancel", req.CancelURL)
			return &ports.CheckoutSessionResult{SessionID: "cs_1", URL: "https://checkout.example/cs_1"}, nil
		})

	res, err := d.svc.StartCheckout(ctx, "u1", domain.ProductTypeCredentialed)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/cs_1", res.RedirectURL)
	assert.Equal(t, "cs_1", res.SessionID)
}

func TestCheckoutService_StartCheckout_UnknownProduct(t *testing.T) {
	d := setupCheckout(t)
	defer d.ctrl.Finish()

	_, err := d.svc.StartCheckout(context.Background(), "u1", "album")
	assert.True(t, apperror.HasCode(err, "VAL_001"))
}

func TestCheckoutService_StartCheckout_UserNotFound(t *testing.T) {
	d := setupCheckout(t)
	defer d.ctrl.Finish()
	ctx := context.Background()

	d.users.EXPECT().GetUser(ctx, "ghost").Return(nil, nil)

	_, err := d.svc.StartCheckout(ctx, "ghost", domain.ProductTypeCredentialed)
	assert.True(t, apperror.HasCode(err, "USR_001"))
}

func TestCheckoutService_StartCheckout_UserStoreError(t *testing.T) {
	d := setupCheckout(t)
	defer d.ctrl.Finish()
	ctx := context.Background()

	d.users.EXPECT().GetUser(ctx, "u1").Return(nil, errors.New("db down"))

	_, err := d.svc.StartCheckout(ctx, "u1", domain.ProductTypeCredentialed)
	assert.True(t, apperror.HasCode(err, "SYS_001"))
}

func TestCheckoutService_StartCheckout_ProviderFailures(t *testing.T) {
	t.Run("create customer", func(t *testing.T) {
		d := setupCheckout(t)
		defer d.ctrl.Finish()
		ctx := context.Background()

		d.users.EXPECT().GetUser(ctx, "u1").Return(&domain.User{ID: "u1"}, nil)
		d.provider.EXPECT().CreateCustomer(ctx, gomock.Any()).Return("", errors.New("timeout"))

		_, err := d.svc.StartCheckout(ctx, "u1", domain.ProductTypePlain)
		assert.True(t, apperror.HasCode(err, "SYS_002"))
	})

	t.Run("create session", func(t *testing.T) {
		d := setupCheckout(t)
		defer d.ctrl.Finish()
		ctx := context.Background()

		d.users.EXPECT().GetUser(ctx, "u1").Return(&domain.User{ID: "u1"}, nil)
		d.provider.EXPECT().CreateCustomer(ctx, gomock.Any()).Return("cus_1", nil)
		d.provider.EXPECT().CreateCheckoutSession(ctx, gomock.Any()).Return(nil, apperror.ErrDownstreamUnavailable(errors.New("503")))

		_, err := d.svc.StartCheckout(ctx, "u1", domain.ProductTypePlain)
		assert.True(t, apperror.HasCode(err, "SYS_002"))
	})
}
