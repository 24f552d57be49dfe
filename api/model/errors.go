package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                   = errors.New("not found")
	ErrInvalidTransition          = errors.New("invalid status transition")
	ErrUnknownProviderFormat      = errors.New("unrecognized provider id format")
	ErrProbeTimeout               = errors.New("probe timed out")
	ErrRecoveryChannelUnavailable = errors.New("recovery channel unavailable")
	ErrSelfReferral               = errors.New("node cannot refer itself")
	ErrDuplicateReferral          = errors.New("referral already exists")
)

type ProviderErrorCode string

const (
	ProviderUnavailable   ProviderErrorCode = "unavailable"
	ProviderQuotaExceeded ProviderErrorCode = "quota_exceeded"
	ProviderInvalidRegion ProviderErrorCode = "invalid_region"
)

// ProviderError is a typed failure from a cloud vendor adapter.
type ProviderError struct {
	Provider string
	Code     ProviderErrorCode
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
}

// StoreError wraps a transport or constraint failure from the fleet store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// PartialApplyError means the provider confirmed a transition but the
// store update failed afterwards. Callers must be able to tell this apart
// from "nothing changed" so operators can reconcile the drift.
type PartialApplyError struct {
	VMID      string
	Confirmed VMStatus
	Err       error
}

func (e *PartialApplyError) Error() string {
	return fmt.Sprintf("vm %s: provider confirmed %s but store update failed: %v", e.VMID, e.Confirmed, e.Err)
}

func (e *PartialApplyError) Unwrap() error { return e.Err }
