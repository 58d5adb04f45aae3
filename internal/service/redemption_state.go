package service

import (
	"errors"
	"promo-redemption/pkg/apperrors"
)

// RedemptionState is the position of one redemption attempt in the validation
// state machine. Each attempt starts at StateUnvalidated and ends in exactly
// one terminal state; there are no backward transitions.
type RedemptionState string

const (
	StateUnvalidated            RedemptionState = "unvalidated"
	StateNotFound               RedemptionState = "not_found"
	StateInactive               RedemptionState = "inactive"
	StateOutOfWindow            RedemptionState = "out_of_window"
	StateUserLimitExceeded      RedemptionState = "user_limit_exceeded"
	StateTotalLimitExceededRace RedemptionState = "total_limit_exceeded_race"
	StateValid                  RedemptionState = "valid"
	StateCommitted              RedemptionState = "committed"

	// StateRejected covers malformed requests and orders that cannot take a promo code
	StateRejected RedemptionState = "rejected"
	// StateFailed covers infrastructure failures, including failed commits
	StateFailed RedemptionState = "failed"
)

// StateForError maps the error that ended a redemption to its terminal state.
func StateForError(err error) RedemptionState {
	switch {
	case err == nil:
		return StateCommitted
	case errors.Is(err, apperrors.ErrPromoCodeNotFound):
		return StateNotFound
	case errors.Is(err, apperrors.ErrPromoCodeInactive):
		return StateInactive
	case errors.Is(err, apperrors.ErrOutsideValidityWindow):
		return StateOutOfWindow
	case errors.Is(err, apperrors.ErrUserLimitExceeded):
		return StateUserLimitExceeded
	case errors.Is(err, apperrors.ErrTotalLimitRace):
		return StateTotalLimitExceededRace
	case apperrors.IsDomain(err):
		return StateRejected
	default:
		return StateFailed
	}
}

// Terminal reports whether no further transition can leave s.
func (s RedemptionState) Terminal() bool {
	switch s {
	case StateUnvalidated, StateValid:
		return false
	default:
		return true
	}
}
