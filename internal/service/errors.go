package service

import "errors"

var (
	// ErrNoDriverAvailable is returned when no queued driver can be matched.
	ErrNoDriverAvailable = errors.New("no driver available")

	// ErrBookingNotPending is returned when matching a booking that is no longer PENDING.
	ErrBookingNotPending = errors.New("booking not pending")

	// ErrMatchInProgress is returned when another matcher holds the booking lock.
	ErrMatchInProgress = errors.New("booking is being matched")

	// ErrInvalidBookingID is returned when booking ID is empty.
	ErrInvalidBookingID = errors.New("invalid booking id")

	// ErrInvalidCustomerID is returned when customer ID is empty.
	ErrInvalidCustomerID = errors.New("invalid customer id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidLocation is returned when pickup or destination is blank.
	ErrInvalidLocation = errors.New("pickup and destination are required")

	// ErrInvalidFare is returned when the fare is negative.
	ErrInvalidFare = errors.New("invalid fare")

	// ErrInvalidRFID is returned when an RFID is blank.
	ErrInvalidRFID = errors.New("invalid rfid")

	// ErrUnknownRFID is returned when no driver owns the tapped RFID.
	ErrUnknownRFID = errors.New("rfid not registered")

	// ErrRFIDInUse is returned when another driver already owns the RFID.
	ErrRFIDInUse = errors.New("rfid already assigned to another driver")

	// ErrInvalidPaymentMode is returned for an unknown payment mode.
	ErrInvalidPaymentMode = errors.New("invalid payment mode")

	// ErrInvalidDiscountType is returned for an unknown discount type.
	ErrInvalidDiscountType = errors.New("invalid discount type")

	// ErrDriverCannotGoOnline is returned when a suspended driver taps in.
	ErrDriverCannotGoOnline = errors.New("driver is not allowed to go online")

	// ErrDriverAlreadyQueued is returned when the driver already holds a queue slot.
	ErrDriverAlreadyQueued = errors.New("driver already in queue")

	// ErrDriverNotQueued is returned when the driver holds no queue slot.
	ErrDriverNotQueued = errors.New("driver not in queue")

	// ErrDriverHasActiveBooking is returned when a driver with an open booking joins the queue.
	ErrDriverHasActiveBooking = errors.New("driver already has an active booking")

	// ErrDriverNotAssigned is returned when the driver is not assigned to the booking.
	ErrDriverNotAssigned = errors.New("driver not assigned to this booking")

	// ErrBookingNotAccepted is returned when marking arrival on a booking that is not ACCEPTED.
	ErrBookingNotAccepted = errors.New("booking not accepted")

	// ErrBookingNotAtPickup is returned when the driver has not marked arrival.
	ErrBookingNotAtPickup = errors.New("driver has not arrived at pickup")

	// ErrTripCannotStart is returned when starting a trip from a state other than ACCEPTED or AT_PICKUP.
	ErrTripCannotStart = errors.New("trip cannot start in current state")

	// ErrTripNotInProgress is returned when completing a trip that is not IN_PROGRESS.
	ErrTripNotInProgress = errors.New("trip not in progress")

	// ErrNoShowWindowOpen is returned when reporting a no-show before the wait elapsed.
	ErrNoShowWindowOpen = errors.New("no-show wait time has not elapsed")

	// ErrBookingFinished is returned when acting on a COMPLETED, NO_SHOW or CANCELLED booking.
	ErrBookingFinished = errors.New("booking already finished")

	// ErrTripInProgress is returned when cancelling a booking whose trip started.
	ErrTripInProgress = errors.New("cannot cancel booking with trip in progress")
)
