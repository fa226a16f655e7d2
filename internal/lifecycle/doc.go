// Package lifecycle holds the client-side appointment workflow: resolving a
// doctor from a service, constraining bookable dates and slots, guarding
// status transitions and detecting new bookings by polling.
//
// The backend stays authoritative for every rule here. These checks mirror
// what the booking form and dashboards enforce before a request leaves.
package lifecycle
