package httpapi

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"jobradar-engine/internal/config"
	"jobradar-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

type setTwilioTokenReq struct {
	Token string `json:"token"`
}

// SetTwilioToken stores the Twilio auth token in the OS keychain so it
// never has to sit in config.yml.
func (h SecretsHandler) SetTwilioToken(w http.ResponseWriter, r *http.Request) {
	var req setTwilioTokenReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	if err := secrets.SetTwilioToken(secrets.TwilioKeyringAccount(cfg), req.Token); err != nil {
		http.Error(w, "failed to store token: "+err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
