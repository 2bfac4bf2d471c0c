package handler

import (
	"net/http"
	"slices"
	"time"

	"forum/internal/delivery/api/response"
	deliverycontext "forum/internal/delivery/context"
	"forum/internal/domain/entity"
	domainerrors "forum/internal/domain/errors"
	"forum/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// AccountHandler serves the member profile.
type AccountHandler struct {
	accountUC usecase.AccountUsecase
}

// NewAccountHandler is the constructor for AccountHandler
func NewAccountHandler(accountUC usecase.AccountUsecase) *AccountHandler {
	return &AccountHandler{accountUC: accountUC}
}

// AccountResponse is the public view of an account.
type AccountResponse struct {
	ID                 uuid.UUID `json:"id"`
	Email              string    `json:"email"`
	Name               string    `json:"name"`
	Handle             string    `json:"handle"`
	AvatarURL          string    `json:"avatarUrl,omitempty"`
	Role               string    `json:"role"`
	ConnectedProviders []string  `json:"connectedProviders"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Me returns the caller's own profile.
func (h *AccountHandler) Me(c echo.Context) error {
	principal, ok := deliverycontext.GetPrincipal(c)
	if !ok {
		return errors.WithStack(domainerrors.ErrMissingToken)
	}

	account, err := h.accountUC.GetAccount(c.Request().Context(), principal.AccountID)
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Success(c, http.StatusOK, newAccountResponse(account))
}

func newAccountResponse(account *entity.Account) *AccountResponse {
	if account == nil {
		return nil
	}

	providers := make([]string, 0, len(account.ExternalIdentities))
	for provider := range account.ExternalIdentities {
		providers = append(providers, provider.String())
	}
	slices.Sort(providers)

	return &AccountResponse{
		ID:                 account.ID,
		Email:              account.Email,
		Name:               account.Name,
		Handle:             account.Handle,
		AvatarURL:          account.AvatarURL,
		Role:               account.Role.String(),
		ConnectedProviders: providers,
		CreatedAt:          account.CreatedAt,
		UpdatedAt:          account.UpdatedAt,
	}
}
