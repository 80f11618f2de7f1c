package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"vaultbot/internal/providers/telegram"
)

const telegramSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// TelegramWebhook receives bot updates. Once the body parses it always answers
// 200 so Telegram does not redeliver; command failures are only logged.
func (a *App) TelegramWebhook(w http.ResponseWriter, r *http.Request) {
	if a.TelegramSecret != "" {
		got := r.Header.Get(telegramSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(a.TelegramSecret)) != 1 {
			a.error(w, http.StatusUnauthorized, "unauthorized", "bad secret token")
			return
		}
	}
	var upd telegram.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.maxBody())).Decode(&upd); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid update")
		return
	}
	if upd.Message != nil && a.Commands != nil {
		if err := a.Commands.Handle(r.Context(), upd.Message); err != nil {
			a.Logger.Error().Err(err).
				Int64("update_id", upd.UpdateID).
				Int64("chat_id", upd.Message.Chat.ID).
				Msg("telegram webhook: command failed")
		}
	}
	a.json(w, http.StatusOK, map[string]bool{"ok": true})
}
