package bidding

import (
	"github.com/mmeshcher/restaurant-marketplace/internal/model"
)

// Rollup пересчитывает агрегат курьера по истории доставок.
func Rollup(deliveryPersonID int64, reviews []model.DeliveryReview) model.DeliveryRating {
	r := model.DeliveryRating{DeliveryPersonID: deliveryPersonID}

	var ratingSum, minutesSum int
	for _, rv := range reviews {
		r.TotalDeliveries++
		minutesSum += rv.DeliveryMinutes
		if rv.OnTime {
			r.OnTimeDeliveries++
		}
		if rv.Rating != nil {
			r.Reviews++
			ratingSum += *rv.Rating
		}
	}

	if r.Reviews > 0 {
		r.AverageRating = float64(ratingSum) / float64(r.Reviews)
	}
	if r.TotalDeliveries > 0 {
		r.AvgDeliveryMinutes = float64(minutesSum) / float64(r.TotalDeliveries)
	}
	return r
}
