package authkit

import (
	"go.uber.org/zap"

	"github.com/etikos/authkit/internal"
)

// Engine defines a public type used by authkit APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
//
// All methods are safe for concurrent use once the engine has been built.
type Engine struct {
	config    Config
	directory Directory
	issuer    TokenIssuer
	recorder  Recorder
	totp      *totpManager
	pending   *pendingLoginStore
	locks     *internal.KeyedMutex
	logger    *zap.Logger
}

func (e *Engine) ready() error {
	if e == nil || e.directory == nil || e.totp == nil {
		return ErrEngineNotReady
	}
	return nil
}
