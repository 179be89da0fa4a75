package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmamrila/aiquoting-sub001/internal/catalog"
	"github.com/mmamrila/aiquoting-sub001/internal/logging"
	"github.com/mmamrila/aiquoting-sub001/internal/models"
	"github.com/mmamrila/aiquoting-sub001/internal/monitor"
	"github.com/mmamrila/aiquoting-sub001/internal/pricing"
	"github.com/mmamrila/aiquoting-sub001/internal/safety"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const quoteNumberAttempts = 5

var (
	ErrInvalidRecommendation = errors.New("invalid_recommendation")
	ErrQuoteBlocked          = errors.New("quote_blocked")
	ErrQuoteNumberExhausted  = errors.New("quote_number_exhausted")
)

// BlockedError is returned when safety validation stops a quote. The quote
// and its items are rolled back.
type BlockedError struct {
	Result safety.Result
}

func (e *BlockedError) Error() string {
	kinds := make([]string, 0, len(e.Result.Errors))
	for _, issue := range e.Result.Errors {
		kinds = append(kinds, string(issue.Kind))
	}
	return "quote_blocked: " + strings.Join(kinds, ",")
}

func (e *BlockedError) Is(target error) bool { return target == ErrQuoteBlocked }

// LineRequest asks for a catalog part by SKU.
type LineRequest struct {
	SKU      string `json:"sku" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=1"`
	Notes    string `json:"notes,omitempty"`
}

// Recommendation is the abstract system proposal a quote is built from.
type Recommendation struct {
	SystemType    string        `json:"system_type" validate:"required"`
	UserCount     int           `json:"user_count" validate:"gte=1"`
	SiteCount     int           `json:"site_count,omitempty" validate:"gte=0"`
	FrequencyBand string        `json:"frequency_band,omitempty"`
	RadioSKU      string        `json:"radio_sku,omitempty"`
	RepeaterCount int           `json:"repeater_count,omitempty" validate:"gte=0"`
	Items         []LineRequest `json:"items,omitempty" validate:"dive"`
	Notes         string        `json:"notes,omitempty"`
}

func (r Recommendation) sites() int {
	return max(r.SiteCount, 1)
}

// MultiSiteRequirements describes a deployment spanning several sites.
type MultiSiteRequirements struct {
	Client        ClientInfo    `json:"client"`
	SystemType    string        `json:"system_type" validate:"required"`
	SiteCount     int           `json:"site_count" validate:"gte=2"`
	UserCount     int           `json:"user_count" validate:"gte=1"`
	FrequencyBand string        `json:"frequency_band,omitempty"`
	Items         []LineRequest `json:"items,omitempty" validate:"dive"`
	SessionID     string        `json:"session_id,omitempty"`
	Notes         string        `json:"notes,omitempty"`
}

// QuoteValidator gates a quote before commit.
type QuoteValidator interface {
	Validate(ctx context.Context, q safety.QuoteData) safety.Result
}

// Recorder receives operational metrics.
type Recorder interface {
	RecordQuote(ev monitor.QuoteEvent)
	RecordValidationFailure()
	RecordError(operation string, err error)
}

type nopRecorder struct{}

func (nopRecorder) RecordQuote(monitor.QuoteEvent) {}
func (nopRecorder) RecordValidationFailure()       {}
func (nopRecorder) RecordError(string, error)      {}

// QuoteService turns recommendations into priced, validated quotes.
type QuoteService struct {
	db        *gorm.DB
	catalog   *catalog.Catalog
	clients   *ClientService
	totals    *TotalsService
	validator QuoteValidator
	recorder  Recorder
	timeout   time.Duration
	log       *zap.Logger
	now       func() time.Time
}

func NewQuoteService(db *gorm.DB, cat *catalog.Catalog, clients *ClientService, totals *TotalsService,
	validator QuoteValidator, recorder Recorder, timeout time.Duration, log *zap.Logger) *QuoteService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &QuoteService{
		db:        db,
		catalog:   cat,
		clients:   clients,
		totals:    totals,
		validator: validator,
		recorder:  recorder,
		timeout:   timeout,
		log:       logging.OrNop(log),
		now:       time.Now,
	}
}

type assembly struct {
	rec       Recommendation
	client    ClientInfo
	sessionID string
	intent    string
}

// CreateFromRecommendation builds a quote from a recommendation.
func (s *QuoteService) CreateFromRecommendation(ctx context.Context, rec Recommendation, client ClientInfo, sessionID string) (*models.Quote, safety.Result, error) {
	return s.assemble(ctx, assembly{rec: rec, client: client, sessionID: sessionID, intent: "quote_from_recommendation"})
}

// CreateMultiSite builds a linked multi-site quote.
func (s *QuoteService) CreateMultiSite(ctx context.Context, req MultiSiteRequirements) (*models.Quote, safety.Result, error) {
	if req.SiteCount < 2 {
		return nil, safety.Result{}, fmt.Errorf("%w: multi-site quote needs at least 2 sites", ErrInvalidRecommendation)
	}
	rec := Recommendation{
		SystemType:    req.SystemType,
		UserCount:     req.UserCount,
		SiteCount:     req.SiteCount,
		FrequencyBand: req.FrequencyBand,
		Items:         req.Items,
		Notes:         req.Notes,
	}
	return s.assemble(ctx, assembly{rec: rec, client: req.Client, sessionID: req.SessionID, intent: "multi_site_quote"})
}

// CreateSystem builds a single-site quote for a system type and user count.
// An empty sessionID gets a generated one.
func (s *QuoteService) CreateSystem(ctx context.Context, systemType string, userCount int, industry, sessionID string) (*models.Quote, safety.Result, error) {
	rec := Recommendation{SystemType: systemType, UserCount: userCount, SiteCount: 1}
	return s.assemble(ctx, assembly{
		rec:       rec,
		client:    ClientInfo{Industry: industry, UserCount: userCount},
		sessionID: sessionID,
		intent:    "system_quote",
	})
}

// Get returns a quote with its client and items.
func (s *QuoteService) Get(ctx context.Context, id uint) (*models.Quote, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.load(s.db.WithContext(ctx), id)
}

func (s *QuoteService) load(tx *gorm.DB, id uint) (*models.Quote, error) {
	var q models.Quote
	err := tx.Preload("Client").Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).First(&q, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrQuoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load quote %d: %w", id, err)
	}
	return &q, nil
}

func (s *QuoteService) assemble(ctx context.Context, a assembly) (*models.Quote, safety.Result, error) {
	started := s.now()
	rec := a.rec
	if strings.TrimSpace(rec.SystemType) == "" || rec.UserCount <= 0 {
		return nil, safety.Result{}, fmt.Errorf("%w: system type and a positive user count are required", ErrInvalidRecommendation)
	}
	if a.sessionID == "" {
		a.sessionID = uuid.NewString()
	}
	rec.SystemType = pricing.CanonicalName(rec.SystemType)
	if a.client.UserCount == 0 {
		a.client.UserCount = rec.UserCount
	}

	client, err := s.clients.ResolveOrCreate(ctx, a.client)
	if err != nil {
		s.recorder.RecordError("resolve_client", err)
		return nil, safety.Result{}, err
	}

	items, err := s.buildItems(ctx, rec)
	if err != nil {
		s.recorder.RecordError("build_items", err)
		return nil, safety.Result{}, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var (
		quote  models.Quote
		result safety.Result
		unlock func()
	)
	defer func() {
		if unlock != nil {
			unlock()
		}
	}()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		quote = models.Quote{
			ClientID:   client.ID,
			Status:     models.QuoteStatusDraft,
			SystemType: rec.SystemType,
			Notes:      rec.Notes,
		}
		if err := s.createShell(tx, &quote); err != nil {
			return err
		}
		unlock = s.totals.Lock(quote.ID)

		for i := range items {
			items[i].QuoteID = quote.ID
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return fmt.Errorf("create quote items: %w", err)
			}
		}

		b, err := s.totals.CalculateTx(tx, quote.ID)
		if err != nil {
			return err
		}

		result = s.validator.Validate(ctx, safety.QuoteData{
			SessionID:   a.sessionID,
			QuoteNumber: quote.QuoteNumber,
			TotalAmount: b.Amount,
			UserCount:   rec.UserCount,
			SystemType:  rec.SystemType,
			SiteCount:   rec.sites(),
		})
		if !result.IsValid {
			return &BlockedError{Result: result}
		}
		return nil
	})

	var blocked *BlockedError
	if errors.As(err, &blocked) {
		s.recorder.RecordValidationFailure()
		return nil, blocked.Result, err
	}
	if err != nil {
		s.recorder.RecordError("assemble_quote", err)
		return nil, safety.Result{}, err
	}

	s.recordInteraction(ctx, a, result)

	hydrated, err := s.load(s.db.WithContext(ctx), quote.ID)
	if err != nil {
		s.recorder.RecordError("load_quote", err)
		return nil, result, err
	}

	s.recorder.RecordQuote(monitor.QuoteEvent{
		QuoteNumber:  hydrated.QuoteNumber,
		Amount:       hydrated.TotalAmount,
		SystemType:   hydrated.SystemType,
		UserCount:    rec.UserCount,
		MultiSite:    rec.sites() > 1,
		Warnings:     len(result.Warnings),
		ResponseTime: s.now().Sub(started),
	})
	s.log.Info("quote created",
		zap.Uint("quote_id", hydrated.ID),
		zap.String("quote_number", hydrated.QuoteNumber),
		zap.String("session_id", a.sessionID),
		zap.Float64("total_amount", hydrated.TotalAmount),
		zap.Int("items", len(hydrated.Items)))
	return hydrated, result, nil
}

// createShell inserts the quote header, drawing a new number on collision.
// Each attempt runs in a savepoint so a failed insert leaves tx usable.
func (s *QuoteService) createShell(tx *gorm.DB, q *models.Quote) error {
	var err error
	for attempt := 1; attempt <= quoteNumberAttempts; attempt++ {
		q.ID = 0
		q.QuoteNumber = s.quoteNumber()
		err = tx.Transaction(func(sp *gorm.DB) error {
			return sp.Create(q).Error
		})
		if err == nil {
			return nil
		}
		if !isDuplicate(err) {
			return fmt.Errorf("create quote: %w", err)
		}
		s.log.Warn("quote number collision", zap.String("quote_number", q.QuoteNumber), zap.Int("attempt", attempt))
	}
	return fmt.Errorf("%w: %v", ErrQuoteNumberExhausted, err)
}

func (s *QuoteService) quoteNumber() string {
	return fmt.Sprintf("Q%s-%03d", s.now().Format("060102"), rand.IntN(1000))
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}

func (s *QuoteService) recordInteraction(ctx context.Context, a assembly, r safety.Result) {
	row := models.Interaction{
		SessionID:            a.sessionID,
		IntentClassification: a.intent,
		FollowUpRequired:     r.RequiresReview,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.log.Warn("failed to record interaction", zap.String("session_id", a.sessionID), zap.Error(err))
	}
}

func partLine(p *models.Part, qty int, note string) models.QuoteItem {
	id := p.ID
	notes := p.SKU + " " + p.Name
	if note != "" {
		notes += " - " + note
	}
	return models.QuoteItem{
		PartID:     &id,
		PartSource: p.Source,
		PartSKU:    p.SKU,
		Quantity:   qty,
		UnitPrice:  p.Price,
		TotalPrice: pricing.LineTotal(p.Price, qty),
		Notes:      notes,
	}
}

func serviceLine(unitPrice float64, qty int, hours float64, notes string) models.QuoteItem {
	return models.QuoteItem{
		Quantity:   qty,
		UnitPrice:  unitPrice,
		TotalPrice: pricing.LineTotal(unitPrice, qty),
		LaborHours: hours,
		Notes:      notes,
	}
}

// buildItems resolves parts and applies the pricing rules. Missing parts
// are skipped with a warning.
func (s *QuoteService) buildItems(ctx context.Context, rec Recommendation) ([]models.QuoteItem, error) {
	var items []models.QuoteItem
	sites := rec.sites()
	multiSite := sites > 1
	profile, known := pricing.Profile(rec.SystemType)

	// radios
	radio, err := s.findRadio(ctx, rec)
	if err != nil {
		return nil, err
	}
	if radio != nil {
		items = append(items, partLine(radio, rec.UserCount, "portable radios"))
	}

	// repeaters
	repeaters := rec.RepeaterCount
	if repeaters == 0 && known {
		perSite := int(math.Ceil(float64(rec.UserCount) / float64(sites)))
		repeaters = profile.RepeatersFor(perSite) * sites
	}
	if repeaters > 0 {
		rpt, err := s.catalog.FindRepeater(ctx, rec.SystemType, rec.FrequencyBand)
		switch {
		case err == nil:
			items = append(items, partLine(rpt, repeaters, "repeaters"))
		case errors.Is(err, catalog.ErrPartNotFound):
			s.log.Warn("no repeater for system type, skipping", zap.String("system_type", rec.SystemType))
		default:
			return nil, err
		}
	}

	// accessories
	acc := pricing.AccessoriesFor(rec.UserCount)
	for _, want := range []struct {
		subcategory string
		qty         int
	}{
		{models.SubcategoryBattery, acc.Batteries},
		{models.SubcategoryCharger, acc.Chargers},
		{models.SubcategoryClip, acc.BeltClips},
	} {
		p, err := s.catalog.FindAccessory(ctx, want.subcategory)
		switch {
		case err == nil:
			items = append(items, partLine(p, want.qty, ""))
		case errors.Is(err, catalog.ErrPartNotFound):
			s.log.Warn("accessory not in catalog, skipping", zap.String("subcategory", want.subcategory))
		default:
			return nil, err
		}
	}

	// explicitly requested parts
	for _, line := range rec.Items {
		p, err := s.catalog.FindBySKU(ctx, line.SKU)
		switch {
		case err == nil:
			items = append(items, partLine(p, line.Quantity, line.Notes))
		case errors.Is(err, catalog.ErrPartNotFound):
			s.log.Warn("requested sku not found, skipping", zap.String("sku", line.SKU))
		default:
			return nil, err
		}
	}

	// installation labor
	var hours float64
	if multiSite {
		hours = pricing.MultiSiteLaborHours(sites, true)
	} else {
		hours = pricing.SingleSiteLaborHours(repeaters, rec.UserCount)
	}
	items = append(items, serviceLine(0, 1, hours,
		fmt.Sprintf("Installation labor: %.0fh at $%.0f/h", hours, pricing.LaborRate)))

	// licensing
	if known && profile.Licensed {
		fee := pricing.LicensingFee(sites, multiSite)
		items = append(items, serviceLine(fee, 1, 0, fmt.Sprintf("%s licensing (%d site(s))", profile.Name, sites)))
	}

	// inter-site linking
	if multiSite {
		if rate, ok := pricing.LinkingRate(rec.SystemType); ok {
			items = append(items,
				serviceLine(rate, sites, 0, fmt.Sprintf("%s inter-site linking", profile.Name)),
				serviceLine(pricing.NetworkingFee, 1, 0, "Inter-site networking"))
		}
	}
	return items, nil
}

// findRadio prefers an explicit radio SKU, then the cheapest radio in the
// requested band, then the cheapest radio in any band.
func (s *QuoteService) findRadio(ctx context.Context, rec Recommendation) (*models.Part, error) {
	if rec.RadioSKU != "" {
		p, err := s.catalog.FindBySKU(ctx, rec.RadioSKU)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, catalog.ErrPartNotFound) {
			return nil, err
		}
		s.log.Warn("requested radio sku not found, searching by band", zap.String("sku", rec.RadioSKU))
	}
	p, err := s.catalog.FindRadio(ctx, rec.FrequencyBand)
	if errors.Is(err, catalog.ErrPartNotFound) {
		s.log.Warn("no radio in catalog, skipping radios")
		return nil, nil
	}
	return p, err
}
