package domain

import "errors"

var (
	ErrNilInstrument     = errors.New("instrument is nil")
	ErrNotOption         = errors.New("instrument is not an option")
	ErrMissingOptionType = errors.New("option type is missing")
	ErrMissingStrike     = errors.New("strike is missing")
	ErrInvalidStrike     = errors.New("strike must be positive")
	ErrMissingExpiry     = errors.New("expiry date is missing")
	ErrMissingUnderlying = errors.New("underlying reference is missing")
	ErrMissingBoard      = errors.New("exchange board is missing")
	ErrInvalidSide       = errors.New("invalid side")

	ErrUnderlyingNotFound = errors.New("underlying asset not found")
	ErrNilProvider        = errors.New("provider is nil")

	ErrNegativeDeviation      = errors.New("standard deviation must not be negative")
	ErrNonFiniteValue         = errors.New("calculation produced a non-finite value")
	ErrInvalidRoundDecimals   = errors.New("round decimals must be >= -1")
	ErrFuturesDividend        = errors.New("futures model does not accept dividend")
	ErrUnknownModel           = errors.New("unknown pricing model")
	ErrNilPremiumFunc         = errors.New("premium function is nil")
	ErrVolatilityNotConverged = errors.New("implied volatility search did not converge")

	ErrNoOptions      = errors.New("basket has no options")
	ErrLegMismatch    = errors.New("leg underlying does not match basket")
	ErrDuplicateLeg   = errors.New("leg already exists in basket")
	ErrLegNotFound    = errors.New("leg not found")
	ErrBasketNotFound = errors.New("basket not found")

	ErrStrikeStep             = errors.New("not enough strikes to compute strike step")
	ErrInvalidRange           = errors.New("invalid strike rule range")
	ErrUnknownStrikeRule      = errors.New("unknown strike rule kind")
	ErrOppositeOptionNotFound = errors.New("opposite option not found")
	ErrOptionNotFound         = errors.New("option not found")

	ErrInstrumentNotFound = errors.New("instrument not found")
)
