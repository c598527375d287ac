package mock

import "github.com/poiesic/ragbook/core"

func bookingInfo(name, email, date, clock string) core.BookingInfo {
	return core.BookingInfo{Name: name, Email: email, Date: date, Time: clock}
}
