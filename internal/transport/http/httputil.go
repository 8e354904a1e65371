package httptransport

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	domainerrors "spout/pkg/domain-errors"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation to HTTP responses so every
// handler returns the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := domainerrors.CodeInternal
	message := "internal error"

	var dErr *domainerrors.Error
	if errors.As(err, &dErr) {
		code = dErr.Code
		message = dErr.Message
		status = statusFor(dErr.Code)
	}
	writeJSON(w, status, map[string]string{
		"error":             string(code),
		"error_description": message,
	})
}

func statusFor(code domainerrors.Code) int {
	switch code {
	case domainerrors.CodeNotFound:
		return http.StatusNotFound
	case domainerrors.CodeConflict:
		return http.StatusConflict
	case domainerrors.CodeValidation, domainerrors.CodeInvalidClaim,
		domainerrors.CodeUnsupportedScheme, domainerrors.CodeInvalidAmount:
		return http.StatusBadRequest
	case domainerrors.CodeUnauthorized, domainerrors.CodeNotRegistryOwner:
		return http.StatusForbidden
	case domainerrors.CodeOracleError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domainerrors.New(domainerrors.CodeValidation, "invalid request body")
	}
	return nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, domainerrors.New(domainerrors.CodeValidation, "invalid address")
	}
	return common.HexToAddress(s), nil
}

func parseHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, domainerrors.New(domainerrors.CodeValidation, "invalid hex payload")
	}
	return raw, nil
}

func parseHash32(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := parseHex(s)
	if err != nil || len(raw) != 32 {
		return out, domainerrors.New(domainerrors.CodeValidation, "expected a 32-byte hex value")
	}
	copy(out[:], raw)
	return out, nil
}
