// Package events turns platform gateway events into calls on the referral
// core.
//
// Dispatcher holds one method per event. Loop queues events and feeds them
// to the Dispatcher from a single goroutine, so a member's join is always
// handled before their role update and leave.
//
// Join attribution compares a fresh invite listing with the cached one.
// Two joins through different invites landing between the same pair of
// listings can be misattributed or not attributed at all. Loop orders
// event handling but does not close that window, since the listing is
// taken after the platform has already counted both uses.
package events
