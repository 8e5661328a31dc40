package floorplan

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	floorplanCellsOccupied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "floorplan_cells_occupied_total",
		Help: "The number of unit cells that transitioned from unvisited to visited.",
	})

	floorplanOutOfRangePoints = promauto.NewCounter(prometheus.CounterOpts{
		Name: "floorplan_out_of_range_points_total",
		Help: "The number of visited points ignored because they were outside the mapped region.",
	})
)

func instrumentCellOccupied() {
	floorplanCellsOccupied.Inc()
}

func instrumentOutOfRangePoint() {
	floorplanOutOfRangePoints.Inc()
}
