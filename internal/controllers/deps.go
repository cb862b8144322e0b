package controllers

import (
	"ridra/internal/config"
	"ridra/internal/realtime"
	"ridra/internal/trips"
)

var (
	hub       = realtime.NewHub()
	publisher realtime.Publisher = hub
)

// Configure installs the socket hub and the publisher used for events.
// A nil publisher delivers through the hub directly.
func Configure(h *realtime.Hub, p realtime.Publisher) {
	if h != nil {
		hub = h
	}
	if p == nil {
		p = hub
	}
	publisher = p
}

func tripService() *trips.Service {
	return trips.NewService(config.GetDB(), realtime.NewTripNotifier(publisher))
}
