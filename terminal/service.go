package terminal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"github.com/hydraterm/hydraterm/internal/apperr"
	"github.com/hydraterm/hydraterm/internal/gatt"
	"github.com/hydraterm/hydraterm/internal/notify"
	"github.com/hydraterm/hydraterm/terminal/models"
)

// PaymentBinder produces the write handler that pays for a merchant request.
type PaymentBinder interface {
	Bind(sessionID string, req models.MerchantRequest) gatt.WriteFunc
}

// Advertiser publishes the service built for the latest request.
type Advertiser interface {
	Activate(svc *gatt.Service) error
}

type Subscriber interface {
	Subscribe(sessionID string) (<-chan notify.Event, func())
}

// Service handles the merchant side: sessions connect, register payment
// requests and listen for payment events.
type Service struct {
	repo       *Repository
	payments   PaymentBinder
	advertiser Advertiser
	events     Subscriber
	logger     *slog.Logger
}

func NewService(logger *slog.Logger, repo *Repository, payments PaymentBinder, advertiser Advertiser, events Subscriber) *Service {
	return &Service{
		repo:       repo,
		payments:   payments,
		advertiser: advertiser,
		events:     events,
		logger:     logger.With(slog.String("component", "sessions")),
	}
}

func (s *Service) Connect() (*models.Session, error) {
	session := &models.Session{
		ID:          uuid.New().String(),
		ConnectedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateSession(session); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	s.logger.Info("merchant session connected", slog.String("session", session.ID))
	return session, nil
}

func (s *Service) GetSession(sessionID string) (*models.Session, error) {
	return s.repo.GetSession(sessionID)
}

// RequestFunds builds the characteristic set for req and makes it the
// advertised one, superseding any earlier request.
func (s *Service) RequestFunds(sessionID string, req models.MerchantRequest) (*models.RequestFundsResponse, error) {
	if _, err := s.repo.GetSession(sessionID); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidRequest, err)
	}
	req = req.Clone()

	s.logger.Info("funds requested",
		slog.String("session", sessionID),
		slog.String("merchant", req.Address),
		slog.String("amount", req.Amount.String()),
		slog.Any("decimals", req.Decimals),
		slog.String("asset_unit", req.AssetUnit))

	svc, err := BuildCharacteristics(req, s.payments.Bind(sessionID, req))
	if err != nil {
		return nil, fmt.Errorf("%w: building characteristics: %w", apperr.ErrInvalidRequest, err)
	}
	if err := s.advertiser.Activate(svc); err != nil {
		return nil, fmt.Errorf("activating characteristics: %w", err)
	}
	if err := s.repo.SetRequest(sessionID, req); err != nil {
		return nil, err
	}

	return describeService(sessionID, svc), nil
}

// Disconnect forgets the session. A characteristic set it registered stays
// advertised until another request supersedes it.
func (s *Service) Disconnect(sessionID string) error {
	if err := s.repo.DeleteSession(sessionID); err != nil {
		return err
	}
	s.logger.Info("merchant session disconnected", slog.String("session", sessionID))
	return nil
}

// Subscribe attaches a listener for payment events to a known session.
func (s *Service) Subscribe(sessionID string) (<-chan notify.Event, func(), error) {
	if _, err := s.repo.GetSession(sessionID); err != nil {
		return nil, nil, err
	}
	ch, cancel := s.events.Subscribe(sessionID)
	return ch, cancel, nil
}

func describeService(sessionID string, svc *gatt.Service) *models.RequestFundsResponse {
	resp := &models.RequestFundsResponse{SessionID: sessionID, Service: svc.UUID}
	for _, c := range svc.Characteristics {
		mc := models.Characteristic{UUID: c.UUID}
		for _, p := range c.Properties {
			mc.Properties = append(mc.Properties, string(p))
		}
		if !c.Has(gatt.PropertyWrite) {
			if res, value := c.Read(0); res == gatt.ResultSuccess {
				mc.Value = string(value)
			}
		}
		resp.Characteristics = append(resp.Characteristics, mc)
	}
	return resp
}
