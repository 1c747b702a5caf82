package handlers

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
)

// Redis pub/sub channels for change events. The engine publishes one event
// per committed order/wallet mutation; fan-out to clients is someone else's
// job.
const (
	orderEventsChannel  = "nexgo:orders"
	walletEventsChannel = "nexgo:wallets"
)

type changeEvent struct {
	Type   string `json:"type"`
	ID     int64  `json:"id"`
	Number string `json:"number,omitempty"`
	Status string `json:"status,omitempty"`
	UserID int64  `json:"userId,omitempty"`
	Amount int64  `json:"amount,omitempty"` // signed, minor units
	Label  string `json:"label,omitempty"`
}

func (h *Handlers) publish(channel string, ev changeEvent) {
	if h.RDB == nil {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_ = h.RDB.Publish(context.Background(), channel, b).Err()
}

func (h *Handlers) publishOrderEvent(orderID int64, orderNumber, status string) {
	h.publish(orderEventsChannel, changeEvent{Type: "order", ID: orderID, Number: orderNumber, Status: status})
}

func (h *Handlers) publishDispatchEvent(dispatchID int64, dispatchNumber, status string) {
	h.publish(orderEventsChannel, changeEvent{Type: "dispatch", ID: dispatchID, Number: dispatchNumber, Status: status})
}

func (h *Handlers) publishWalletEvent(userID, amount int64, label string) {
	h.publish(walletEventsChannel, changeEvent{Type: "wallet", UserID: userID, Amount: amount, Label: label})
}

// --- Wallet balance cache ---

func walletCacheKey(userID int64) string {
	return "wallet:user:" + strconv.FormatInt(userID, 10)
}

const walletCacheTTL = 60 * time.Second

func (h *Handlers) cacheWallet(userID int64, payload any) {
	if h.RDB == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	_ = h.RDB.Set(context.Background(), walletCacheKey(userID), b, walletCacheTTL).Err()
}

func (h *Handlers) cachedWallet(userID int64, dest any) bool {
	if h.RDB == nil {
		return false
	}
	val, err := h.RDB.Get(context.Background(), walletCacheKey(userID)).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), dest) == nil
}

// invalidateWalletCache must run after every committed balance change so
// reads never serve a stale balance for longer than one round trip.
func (h *Handlers) invalidateWalletCache(userID int64) {
	if h.RDB == nil {
		return
	}
	_ = h.RDB.Del(context.Background(), walletCacheKey(userID)).Err()
}
