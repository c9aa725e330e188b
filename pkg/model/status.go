package model

// BridgeState 远程调用桥状态
type BridgeState string

const (
	StateIdle                 BridgeState = "idle"
	StateAwaitingVerification BridgeState = "awaiting_verification"
	StateCalling              BridgeState = "calling"
	StateBackoff              BridgeState = "backoff"
	StateSucceeded            BridgeState = "succeeded"
	StateFailed               BridgeState = "failed"
)

type BridgeStats struct {
	Calls             int64 `json:"calls"`
	Succeeded         int64 `json:"succeeded"`
	Failed            int64 `json:"failed"`
	VerificationWaits int64 `json:"verificationWaits"`
	RateLimitRetries  int64 `json:"rateLimitRetries"`
}

// SessionStatus 浏览器会话与调用桥的当前状态
type SessionStatus struct {
	Alive               bool        `json:"alive"`
	URL                 string      `json:"url"`
	Visible             bool        `json:"visible"`
	PendingVerification bool        `json:"pendingVerification"`
	State               BridgeState `json:"state"`
	Stats               BridgeStats `json:"stats"`
}
