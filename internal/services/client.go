package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmamrila/aiquoting-sub001/internal/logging"
	"github.com/mmamrila/aiquoting-sub001/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// DefaultClientName is used when a quote is requested without a client.
	DefaultClientName = "Prospect"
	// PlaceholderEmail is stored for prospects without an address. It is
	// never used to match clients.
	PlaceholderEmail = "prospect@placeholder.invalid"
)

// ClientInfo describes the client a quote is for.
type ClientInfo struct {
	Name                string `json:"name" validate:"max=255"`
	Industry            string `json:"industry" validate:"max=100"`
	ContactPerson       string `json:"contact_person,omitempty" validate:"max=255"`
	Email               string `json:"email,omitempty" validate:"omitempty,email"`
	Phone               string `json:"phone,omitempty" validate:"max=50"`
	Address             string `json:"address,omitempty" validate:"max=500"`
	CurrentSystem       string `json:"current_system,omitempty"`
	CoverageArea        string `json:"coverage_area,omitempty"`
	UserCount           int    `json:"user_count,omitempty" validate:"gte=0"`
	SpecialRequirements string `json:"special_requirements,omitempty"`
}

func (in ClientInfo) normalized() ClientInfo {
	in.Name = strings.TrimSpace(in.Name)
	in.Industry = strings.ToLower(strings.TrimSpace(in.Industry))
	if in.Name == "" {
		in.Name = DefaultClientName
	}
	if in.Email == "" {
		in.Email = PlaceholderEmail
	}
	return in
}

func (in ClientInfo) model() models.Client {
	return models.Client{
		Name:                in.Name,
		Industry:            in.Industry,
		ContactPerson:       in.ContactPerson,
		Email:               in.Email,
		Phone:               in.Phone,
		Address:             in.Address,
		CurrentSystem:       in.CurrentSystem,
		CoverageArea:        in.CoverageArea,
		UserCount:           in.UserCount,
		SpecialRequirements: in.SpecialRequirements,
	}
}

// ClientService matches clients by (name, industry), creating them when
// absent. Concurrent requests for the same client share one lookup.
type ClientService struct {
	db      *gorm.DB
	timeout time.Duration
	group   singleflight.Group
	log     *zap.Logger
}

func NewClientService(db *gorm.DB, timeout time.Duration, log *zap.Logger) *ClientService {
	return &ClientService{db: db, timeout: timeout, log: logging.OrNop(log)}
}

// ResolveOrCreate returns the client matching in.Name and in.Industry.
func (s *ClientService) ResolveOrCreate(ctx context.Context, in ClientInfo) (*models.Client, error) {
	in = in.normalized()
	key := in.Name + "\x00" + in.Industry
	v, err, shared := s.group.Do(key, func() (any, error) {
		// the flight outlives the caller that started it
		ctx, cancel := withTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.resolve(s.db.WithContext(ctx), in)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.log.Debug("client lookup shared", zap.String("name", in.Name), zap.String("industry", in.Industry))
	}
	c := *v.(*models.Client)
	return &c, nil
}

func (s *ClientService) resolve(tx *gorm.DB, in ClientInfo) (*models.Client, error) {
	var c models.Client
	err := tx.Where("name = ? AND industry = ?", in.Name, in.Industry).First(&c).Error
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find client: %w", err)
	}

	c = in.model()
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}, {Name: "industry"}},
		DoNothing: true,
	}).Create(&c)
	if res.Error != nil {
		return nil, fmt.Errorf("create client: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		s.log.Info("client created", zap.Uint("client_id", c.ID), zap.String("industry", c.Industry))
		return &c, nil
	}

	// lost the insert race to another process
	c = models.Client{}
	if err := tx.Where("name = ? AND industry = ?", in.Name, in.Industry).First(&c).Error; err != nil {
		return nil, fmt.Errorf("reload client: %w", err)
	}
	return &c, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
