package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrNoToken means no usable bearer credential exists for the shop.
	// A sync run must not start without one.
	ErrNoToken = errors.New("no bearer token for shop")

	// ErrNoRemoteRef means the shop has no remote collection configured.
	ErrNoRemoteRef = errors.New("shop has no remote collection reference")
)
