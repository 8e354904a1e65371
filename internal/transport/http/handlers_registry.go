package httptransport

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"spout/internal/compliance/models"
	"spout/internal/platform/middleware"
	domainerrors "spout/pkg/domain-errors"
)

// RegistryService is the slice of the compliance service the transport needs.
type RegistryService interface {
	RegisterIdentity(ctx context.Context, caller common.Address, registration models.Registration) error
	BatchRegisterIdentity(ctx context.Context, caller common.Address, registrations []models.Registration) error
	DeregisterIdentity(ctx context.Context, caller, wallet common.Address) error
	UpdateCountry(ctx context.Context, caller, wallet common.Address, country uint16) error
	UpdateIdentity(ctx context.Context, caller, wallet, identity common.Address) error
	Contains(ctx context.Context, wallet common.Address) (bool, error)
	Entry(ctx context.Context, wallet common.Address) (models.Entry, error)
	IsVerified(ctx context.Context, wallet common.Address) (bool, error)
	RequiredTopics() []models.ClaimTopic
	AddClaimTopic(ctx context.Context, caller common.Address, topic models.ClaimTopic) error
	RemoveClaimTopic(ctx context.Context, caller common.Address, topic models.ClaimTopic) error
	AddTrustedIssuer(ctx context.Context, caller, issuer common.Address, topics []models.ClaimTopic) error
	UpdateTrustedIssuer(ctx context.Context, caller, issuer common.Address, topics []models.ClaimTopic) error
	RemoveTrustedIssuer(ctx context.Context, caller, issuer common.Address) error
	TrustedIssuersForTopic(topic models.ClaimTopic) []common.Address
	TrustedIssuerTopics(issuer common.Address) ([]models.ClaimTopic, error)
}

type RegistryHandler struct {
	registry RegistryService
}

func NewRegistryHandler(registry RegistryService) *RegistryHandler {
	return &RegistryHandler{registry: registry}
}

// Register wires the read surface; RegisterAdmin wires the owner-gated
// mutations and is mounted behind the registry-owner role.
func (h *RegistryHandler) Register(r chi.Router) {
	r.Get("/registry/wallets/{wallet}", h.handleEntry)
	r.Get("/registry/wallets/{wallet}/verified", h.handleIsVerified)
	r.Get("/registry/topics", h.handleRequiredTopics)
	r.Get("/registry/issuers", h.handleIssuersForTopic)
	r.Get("/registry/issuers/{issuer}", h.handleIssuerTopics)
}

func (h *RegistryHandler) RegisterAdmin(r chi.Router) {
	r.Post("/registry/wallets", h.handleRegister)
	r.Post("/registry/wallets/batch", h.handleBatchRegister)
	r.Delete("/registry/wallets/{wallet}", h.handleDeregister)
	r.Put("/registry/wallets/{wallet}/country", h.handleUpdateCountry)
	r.Put("/registry/wallets/{wallet}/identity", h.handleUpdateIdentity)
	r.Post("/registry/topics", h.handleAddTopic)
	r.Delete("/registry/topics/{topic}", h.handleRemoveTopic)
	r.Post("/registry/issuers", h.handleAddIssuer)
	r.Put("/registry/issuers/{issuer}", h.handleUpdateIssuer)
	r.Delete("/registry/issuers/{issuer}", h.handleRemoveIssuer)
}

type registrationRequest struct {
	Wallet   string `json:"wallet"`
	Identity string `json:"identity"`
	Country  uint16 `json:"country"`
}

func (req registrationRequest) toModel() (models.Registration, error) {
	wallet, err := parseAddress(req.Wallet)
	if err != nil {
		return models.Registration{}, err
	}
	identity, err := parseAddress(req.Identity)
	if err != nil {
		return models.Registration{}, err
	}
	return models.Registration{Wallet: wallet, Identity: identity, Country: req.Country}, nil
}

func (h *RegistryHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registrationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	registration, err := req.toModel()
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.registry.RegisterIdentity(r.Context(), middleware.Caller(r.Context()), registration); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *RegistryHandler) handleBatchRegister(w http.ResponseWriter, r *http.Request) {
	var reqs []registrationRequest
	if err := decodeBody(r, &reqs); err != nil {
		writeError(w, err)
		return
	}
	registrations := make([]models.Registration, 0, len(reqs))
	for _, req := range reqs {
		registration, err := req.toModel()
		if err != nil {
			writeError(w, err)
			return
		}
		registrations = append(registrations, registration)
	}
	if err := h.registry.BatchRegisterIdentity(r.Context(), middleware.Caller(r.Context()), registrations); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *RegistryHandler) handleDeregister(w http.ResponseWriter, r *http.Request) {
	wallet, err := parseAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.registry.DeregisterIdentity(r.Context(), middleware.Caller(r.Context()), wallet); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RegistryHandler) handleUpdateCountry(w http.ResponseWriter, r *http.Request) {
	wallet, err := parseAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Country uint16 `json:"country"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.registry.UpdateCountry(r.Context(), middleware.Caller(r.Context()), wallet, req.Country); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RegistryHandler) handleUpdateIdentity(w http.ResponseWriter, r *http.Request) {
	wallet, err := parseAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Identity string `json:"identity"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	identity, err := parseAddress(req.Identity)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.registry.UpdateIdentity(r.Context(), middleware.Caller(r.Context()), wallet, identity); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RegistryHandler) handleEntry(w http.ResponseWriter, r *http.Request) {
	wallet, err := parseAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		writeError(w, err)
		return
	}
	entry, err := h.registry.Entry(r.Context(), wallet)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"wallet":   entry.Wallet.Hex(),
		"identity": entry.Identity.Hex(),
		"country":  entry.Country,
	})
}

func (h *RegistryHandler) handleIsVerified(w http.ResponseWriter, r *http.Request) {
	wallet, err := parseAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		writeError(w, err)
		return
	}
	verified, err := h.registry.IsVerified(r.Context(), wallet)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"verified": verified})
}

func (h *RegistryHandler) handleRequiredTopics(w http.ResponseWriter, r *http.Request) {
	topics := []uint64{}
	for _, topic := range h.registry.RequiredTopics() {
		topics = append(topics, uint64(topic))
	}
	writeJSON(w, http.StatusOK, map[string][]uint64{"topics": topics})
}

func (h *RegistryHandler) handleAddTopic(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topic uint64 `json:"topic"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.registry.AddClaimTopic(r.Context(), middleware.Caller(r.Context()), models.ClaimTopic(req.Topic)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *RegistryHandler) handleRemoveTopic(w http.ResponseWriter, r *http.Request) {
	topic, err := strconv.ParseUint(chi.URLParam(r, "topic"), 10, 64)
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "invalid topic"))
		return
	}
	if err := h.registry.RemoveClaimTopic(r.Context(), middleware.Caller(r.Context()), models.ClaimTopic(topic)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RegistryHandler) handleAddIssuer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Issuer string   `json:"issuer"`
		Topics []uint64 `json:"topics"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	issuer, err := parseAddress(req.Issuer)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.registry.AddTrustedIssuer(r.Context(), middleware.Caller(r.Context()), issuer, toTopics(req.Topics)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *RegistryHandler) handleUpdateIssuer(w http.ResponseWriter, r *http.Request) {
	issuer, err := parseAddress(chi.URLParam(r, "issuer"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Topics []uint64 `json:"topics"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.registry.UpdateTrustedIssuer(r.Context(), middleware.Caller(r.Context()), issuer, toTopics(req.Topics)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RegistryHandler) handleRemoveIssuer(w http.ResponseWriter, r *http.Request) {
	issuer, err := parseAddress(chi.URLParam(r, "issuer"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.registry.RemoveTrustedIssuer(r.Context(), middleware.Caller(r.Context()), issuer); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RegistryHandler) handleIssuersForTopic(w http.ResponseWriter, r *http.Request) {
	topic, err := strconv.ParseUint(r.URL.Query().Get("topic"), 10, 64)
	if err != nil {
		writeError(w, domainerrors.New(domainerrors.CodeValidation, "topic query parameter required"))
		return
	}
	issuers := []string{}
	for _, issuer := range h.registry.TrustedIssuersForTopic(models.ClaimTopic(topic)) {
		issuers = append(issuers, issuer.Hex())
	}
	writeJSON(w, http.StatusOK, map[string][]string{"issuers": issuers})
}

func (h *RegistryHandler) handleIssuerTopics(w http.ResponseWriter, r *http.Request) {
	issuer, err := parseAddress(chi.URLParam(r, "issuer"))
	if err != nil {
		writeError(w, err)
		return
	}
	issuerTopics, err := h.registry.TrustedIssuerTopics(issuer)
	if err != nil {
		writeError(w, err)
		return
	}
	out := []uint64{}
	for _, topic := range issuerTopics {
		out = append(out, uint64(topic))
	}
	writeJSON(w, http.StatusOK, map[string][]uint64{"topics": out})
}

func toTopics(raw []uint64) []models.ClaimTopic {
	out := make([]models.ClaimTopic, 0, len(raw))
	for _, topic := range raw {
		out = append(out, models.ClaimTopic(topic))
	}
	return out
}
