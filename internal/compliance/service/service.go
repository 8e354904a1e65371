// Package service implements the identity registry: wallet registration and
// the aggregate verification predicate token transfers are gated on.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"spout/internal/compliance/issuers"
	"spout/internal/compliance/metrics"
	"spout/internal/compliance/models"
	"spout/internal/compliance/topics"
	"spout/internal/compliance/tracer"
	"spout/internal/events"
	identitymodels "spout/internal/identity/models"
	"spout/internal/platform/ethcrypto"
	domainerrors "spout/pkg/domain-errors"
	"spout/pkg/platform/sentinel"
)

// EntryStore is the persistence port for wallet registry entries.
type EntryStore interface {
	Create(ctx context.Context, entry models.Entry) error
	Get(ctx context.Context, wallet common.Address) (models.Entry, error)
	Update(ctx context.Context, entry models.Entry) error
	Delete(ctx context.Context, wallet common.Address) error
	Contains(ctx context.Context, wallet common.Address) (bool, error)
}

// IdentityGateway resolves identity aggregates and delegates claim validity
// to the claim's issuer. The identity service satisfies it directly.
type IdentityGateway interface {
	GetIdentity(ctx context.Context, address common.Address) (*identitymodels.Identity, error)
	IsClaimValid(ctx context.Context, issuer, subject common.Address, topic identitymodels.ClaimTopic, signature []byte, dataHash [32]byte) (bool, error)
}

// Authorizer is the externally supplied registry-owner predicate. Mutating
// registry operations are gated on it.
type Authorizer interface {
	IsRegistryOwner(ctx context.Context, caller common.Address) bool
}

// StaticOwners authorizes a fixed set of addresses. The default for
// single-tenant deployments; multi-tenant setups inject their own predicate.
type StaticOwners map[common.Address]struct{}

// NewStaticOwners builds an Authorizer from a fixed owner list.
func NewStaticOwners(owners ...common.Address) StaticOwners {
	set := make(StaticOwners, len(owners))
	for _, owner := range owners {
		set[owner] = struct{}{}
	}
	return set
}

func (s StaticOwners) IsRegistryOwner(_ context.Context, caller common.Address) bool {
	_, ok := s[caller]
	return ok
}

// Service aggregates the three registries into the verification predicate and
// owns wallet registration.
type Service struct {
	entries    EntryStore
	topics     *topics.Registry
	issuers    *issuers.Registry
	identities IdentityGateway
	authorizer Authorizer

	logger    *slog.Logger
	publisher events.Publisher
	metrics   *metrics.Metrics
	tracer    tracer.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New constructs a Service.
func New(entries EntryStore, topicsRegistry *topics.Registry, issuersRegistry *issuers.Registry, identities IdentityGateway, authorizer Authorizer, opts ...Option) *Service {
	s := &Service{
		entries:    entries,
		topics:     topicsRegistry,
		issuers:    issuersRegistry,
		identities: identities,
		authorizer: authorizer,
		tracer:     tracer.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterIdentity binds a wallet to a live identity and jurisdiction.
func (s *Service) RegisterIdentity(ctx context.Context, caller common.Address, registration models.Registration) error {
	if err := s.requireOwner(ctx, caller); err != nil {
		return err
	}
	// The bound identity must exist before the wallet can rely on it.
	if _, err := s.identities.GetIdentity(ctx, registration.Identity); err != nil {
		if domainerrors.HasCode(err, domainerrors.CodeNotFound) {
			return domainerrors.New(domainerrors.CodeValidation, "identity does not exist")
		}
		return err
	}
	entry := models.Entry{
		Wallet:   registration.Wallet,
		Identity: registration.Identity,
		Country:  registration.Country,
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return domainerrors.New(domainerrors.CodeConflict, "wallet already registered")
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to register wallet")
	}
	s.metrics.IncrementWalletsRegistered()
	s.emit(ctx, events.Event{
		Type:     events.TypeIdentityRegistered,
		Wallet:   registration.Wallet.Hex(),
		Identity: registration.Identity.Hex(),
		Country:  registration.Country,
	})
	s.log(ctx, "wallet registered", "wallet", registration.Wallet.Hex(), "identity", registration.Identity.Hex())
	return nil
}

// BatchRegisterIdentity registers several wallets. Registrations are applied
// in order; the first failure stops the batch and is returned.
func (s *Service) BatchRegisterIdentity(ctx context.Context, caller common.Address, registrations []models.Registration) error {
	for _, registration := range registrations {
		if err := s.RegisterIdentity(ctx, caller, registration); err != nil {
			return err
		}
	}
	return nil
}

// DeregisterIdentity removes a wallet's binding.
func (s *Service) DeregisterIdentity(ctx context.Context, caller, wallet common.Address) error {
	if err := s.requireOwner(ctx, caller); err != nil {
		return err
	}
	if err := s.entries.Delete(ctx, wallet); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "wallet not registered")
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to deregister wallet")
	}
	s.metrics.IncrementWalletsDeregistered()
	s.emit(ctx, events.Event{
		Type:   events.TypeIdentityDeregistered,
		Wallet: wallet.Hex(),
	})
	return nil
}

// UpdateCountry changes a registered wallet's jurisdiction code.
func (s *Service) UpdateCountry(ctx context.Context, caller, wallet common.Address, country uint16) error {
	if err := s.requireOwner(ctx, caller); err != nil {
		return err
	}
	entry, err := s.entries.Get(ctx, wallet)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "wallet not registered")
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load registry entry")
	}
	entry.Country = country
	if err := s.entries.Update(ctx, entry); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to update registry entry")
	}
	s.emit(ctx, events.Event{
		Type:    events.TypeCountryUpdated,
		Wallet:  wallet.Hex(),
		Country: country,
	})
	return nil
}

// UpdateIdentity rebinds a wallet to a different live identity.
func (s *Service) UpdateIdentity(ctx context.Context, caller, wallet, identity common.Address) error {
	if err := s.requireOwner(ctx, caller); err != nil {
		return err
	}
	if _, err := s.identities.GetIdentity(ctx, identity); err != nil {
		if domainerrors.HasCode(err, domainerrors.CodeNotFound) {
			return domainerrors.New(domainerrors.CodeValidation, "identity does not exist")
		}
		return err
	}
	entry, err := s.entries.Get(ctx, wallet)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "wallet not registered")
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load registry entry")
	}
	entry.Identity = identity
	if err := s.entries.Update(ctx, entry); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to update registry entry")
	}
	return nil
}

// Contains reports whether the wallet is registered.
func (s *Service) Contains(ctx context.Context, wallet common.Address) (bool, error) {
	registered, err := s.entries.Contains(ctx, wallet)
	if err != nil {
		return false, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to check registration")
	}
	return registered, nil
}

// Entry returns a wallet's registry entry.
func (s *Service) Entry(ctx context.Context, wallet common.Address) (models.Entry, error) {
	entry, err := s.entries.Get(ctx, wallet)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Entry{}, domainerrors.New(domainerrors.CodeNotFound, "wallet not registered")
		}
		return models.Entry{}, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load registry entry")
	}
	return entry, nil
}

// IsVerified computes the aggregate verification status for a wallet.
// Verification is topic-conjunctive and issuer-disjunctive: every required
// topic must be covered by at least one trusted issuer whose claim on the
// identity validates. An empty required-topics set verifies every registered
// wallet. Unregistered wallets are never verified.
func (s *Service) IsVerified(ctx context.Context, wallet common.Address) (verified bool, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanIsVerified, tracer.String(tracer.AttrWallet, wallet.Hex()))
	defer func() {
		span.SetAttributes(tracer.Bool(tracer.AttrVerified, verified))
		span.End(err)
		s.metrics.ObserveVerification(verified, time.Since(start).Seconds())
	}()

	entry, err := s.entries.Get(ctx, wallet)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to load registry entry")
	}
	span.SetAttributes(tracer.String(tracer.AttrIdentity, entry.Identity.Hex()))

	identity, err := s.identities.GetIdentity(ctx, entry.Identity)
	if err != nil {
		if domainerrors.HasCode(err, domainerrors.CodeNotFound) {
			// A registered wallet whose identity vanished is unverified,
			// not an error.
			return false, nil
		}
		return false, err
	}

	for _, topic := range s.topics.List() {
		satisfied, topicErr := s.topicSatisfied(ctx, identity, topic)
		if topicErr != nil {
			return false, topicErr
		}
		if !satisfied {
			return false, nil
		}
	}
	return true, nil
}

// topicSatisfied checks whether any trusted issuer for the topic holds a
// valid claim on the identity.
func (s *Service) topicSatisfied(ctx context.Context, identity *identitymodels.Identity, topic models.ClaimTopic) (bool, error) {
	trusted := s.issuers.TrustedForTopic(topic)
	ctx, span := s.tracer.Start(ctx, tracer.SpanTopicCheck,
		tracer.Int64(tracer.AttrTopic, int64(topic)),
		tracer.Int64(tracer.AttrIssuers, int64(len(trusted))),
	)
	defer span.End(nil)

	for _, issuer := range trusted {
		claimID := identitymodels.ClaimID(ethcrypto.ClaimID(issuer, uint64(topic)))
		claim, ok := identity.Claim(claimID)
		if !ok {
			continue
		}
		valid, err := s.identities.IsClaimValid(ctx, issuer, identity.Address(), topic, claim.Signature, claim.DataHash)
		if err != nil {
			return false, err
		}
		if valid {
			return true, nil
		}
	}
	return false, nil
}

// RequiredTopics lists the claim topics verification demands.
func (s *Service) RequiredTopics() []models.ClaimTopic {
	return s.topics.List()
}

// AddClaimTopic adds a required topic.
func (s *Service) AddClaimTopic(ctx context.Context, caller common.Address, topic models.ClaimTopic) error {
	if err := s.requireOwner(ctx, caller); err != nil {
		return err
	}
	if err := s.topics.Add(topic); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return domainerrors.New(domainerrors.CodeConflict, "topic already required")
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to add topic")
	}
	return nil
}

// RemoveClaimTopic drops a required topic.
func (s *Service) RemoveClaimTopic(ctx context.Context, caller common.Address, topic models.ClaimTopic) error {
	if err := s.requireOwner(ctx, caller); err != nil {
		return err
	}
	if err := s.topics.Remove(topic); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "topic not required")
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to remove topic")
	}
	return nil
}

// AddTrustedIssuer registers an issuer with its trusted topics.
func (s *Service) AddTrustedIssuer(ctx context.Context, caller, issuer common.Address, issuerTopics []models.ClaimTopic) error {
	if err := s.requireOwner(ctx, caller); err != nil {
		return err
	}
	if err := s.issuers.Add(issuer, issuerTopics); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return domainerrors.New(domainerrors.CodeConflict, "issuer already trusted")
		case errors.Is(err, sentinel.ErrInvalidState):
			return domainerrors.New(domainerrors.CodeValidation, "issuer needs at least one topic")
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to add issuer")
	}
	return nil
}

// UpdateTrustedIssuer replaces an issuer's trusted topic set.
func (s *Service) UpdateTrustedIssuer(ctx context.Context, caller, issuer common.Address, issuerTopics []models.ClaimTopic) error {
	if err := s.requireOwner(ctx, caller); err != nil {
		return err
	}
	if err := s.issuers.Update(issuer, issuerTopics); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return domainerrors.New(domainerrors.CodeNotFound, "issuer not trusted")
		case errors.Is(err, sentinel.ErrInvalidState):
			return domainerrors.New(domainerrors.CodeValidation, "issuer needs at least one topic")
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to update issuer")
	}
	return nil
}

// RemoveTrustedIssuer drops an issuer from the trusted set.
func (s *Service) RemoveTrustedIssuer(ctx context.Context, caller, issuer common.Address) error {
	if err := s.requireOwner(ctx, caller); err != nil {
		return err
	}
	if err := s.issuers.Remove(issuer); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domainerrors.New(domainerrors.CodeNotFound, "issuer not trusted")
		}
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to remove issuer")
	}
	return nil
}

// TrustedIssuersForTopic exposes the issuer-disjunctive side of verification.
func (s *Service) TrustedIssuersForTopic(topic models.ClaimTopic) []common.Address {
	return s.issuers.TrustedForTopic(topic)
}

// TrustedIssuerTopics returns the topic set an issuer may attest.
func (s *Service) TrustedIssuerTopics(issuer common.Address) ([]models.ClaimTopic, error) {
	issuerTopics, err := s.issuers.TopicsFor(issuer)
	if err != nil {
		return nil, domainerrors.New(domainerrors.CodeNotFound, "issuer not trusted")
	}
	return issuerTopics, nil
}

func (s *Service) requireOwner(ctx context.Context, caller common.Address) error {
	if s.authorizer == nil || !s.authorizer.IsRegistryOwner(ctx, caller) {
		return domainerrors.New(domainerrors.CodeNotRegistryOwner, "caller is not a registry owner")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.publisher == nil {
		return
	}
	event.Timestamp = time.Now().UTC()
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log(ctx, "event publish failed", "event", string(event.Type), "error", err)
	}
}

func (s *Service) log(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, msg, args...)
	}
}
