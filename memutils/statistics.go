package memutils

import "math"

// Statistics sums up the blocks handed out by an allocator and the elements constructed within them
type Statistics struct {
	BlockCount   int
	ElementCount int
	BlockBytes   int
	ElementBytes int
}

func (s *Statistics) Clear() {
	s.BlockCount = 0
	s.ElementCount = 0
	s.BlockBytes = 0
	s.ElementBytes = 0
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.BlockCount += other.BlockCount
	s.ElementCount += other.ElementCount
	s.BlockBytes += other.BlockBytes
	s.ElementBytes += other.ElementBytes
}

type DetailedStatistics struct {
	Statistics
	// Lifetime counters, never reset by frees
	TotalAllocations int
	TotalFrees       int
	BlockSizeMin     int
	BlockSizeMax     int
	PeakBlockBytes   int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.TotalAllocations = 0
	s.TotalFrees = 0
	s.BlockSizeMin = math.MaxInt
	s.BlockSizeMax = 0
	s.PeakBlockBytes = 0
}

func (s *DetailedStatistics) AddBlock(size int) {
	s.BlockCount++
	s.BlockBytes += size

	if size < s.BlockSizeMin {
		s.BlockSizeMin = size
	}

	if size > s.BlockSizeMax {
		s.BlockSizeMax = size
	}

	if s.BlockBytes > s.PeakBlockBytes {
		s.PeakBlockBytes = s.BlockBytes
	}
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.TotalAllocations += other.TotalAllocations
	s.TotalFrees += other.TotalFrees

	if other.BlockSizeMin < s.BlockSizeMin {
		s.BlockSizeMin = other.BlockSizeMin
	}

	if other.BlockSizeMax > s.BlockSizeMax {
		s.BlockSizeMax = other.BlockSizeMax
	}

	if other.PeakBlockBytes > s.PeakBlockBytes {
		s.PeakBlockBytes = other.PeakBlockBytes
	}
}
