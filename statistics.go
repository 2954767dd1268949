package nvvar

import "math"

type Statistics struct {
	ReservationCount int
	ReservedBytes    int
	SystemBytes      int
	CapacityBytes    int
}

func (s *Statistics) Clear() {
	s.ReservationCount = 0
	s.ReservedBytes = 0
	s.SystemBytes = 0
	s.CapacityBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.ReservationCount += other.ReservationCount
	s.ReservedBytes += other.ReservedBytes
	s.SystemBytes += other.SystemBytes
	s.CapacityBytes += other.CapacityBytes
}

type DetailedStatistics struct {
	Statistics
	ReservationSizeMin int
	ReservationSizeMax int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.ReservationSizeMin = math.MaxInt
	s.ReservationSizeMax = 0
}

func (s *DetailedStatistics) AddReservation(size int) {
	s.ReservationCount++
	s.ReservedBytes += size

	if size < s.ReservationSizeMin {
		s.ReservationSizeMin = size
	}

	if size > s.ReservationSizeMax {
		s.ReservationSizeMax = size
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)

	if other.ReservationSizeMin < s.ReservationSizeMin {
		s.ReservationSizeMin = other.ReservationSizeMin
	}

	if other.ReservationSizeMax > s.ReservationSizeMax {
		s.ReservationSizeMax = other.ReservationSizeMax
	}
}

// AccessStatistics counts physical operations issued to a device. Simulated devices maintain these
// so tests can verify write amortization and page batching behavior.
type AccessStatistics struct {
	Reads  int
	Writes int
	Erases int
}

func (s *AccessStatistics) Clear() {
	s.Reads = 0
	s.Writes = 0
	s.Erases = 0
}

func (s *AccessStatistics) AddAccessStatistics(other *AccessStatistics) {
	s.Reads += other.Reads
	s.Writes += other.Writes
	s.Erases += other.Erases
}
