package jobs

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// StartJobs starts the background job scheduler. The sweep job runs every
// minute (it only touches series whose next_checked_at has elapsed, so the
// tick itself is cheap); the purge job handles admin deletions.
func StartJobs(app JobContext) *gocron.Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	scheduleJob(s, app, "series-sweep", 1)
	scheduleJob(s, app, "series-purge", 5)

	log.Println("Starting background job scheduler...")
	s.StartAsync()
	return s
}

func scheduleJob(s *gocron.Scheduler, app JobContext, jobID string, intervalMinutes int) {
	log.Printf("Scheduling job: '%s' to run every %d minutes.", jobID, intervalMinutes)

	_, err := s.Every(intervalMinutes).Minutes().Do(func() {
		// Submit the job to the manager instead of running it directly.
		// This prevents conflicts with manually triggered jobs.
		err := app.JobManager().RunJob(jobID, app)
		if err != nil {
			log.Printf("Scheduled job '%s' could not start: %v", jobID, err)
		}
	})
	if err != nil {
		log.Printf("Error scheduling '%s' job: %v", jobID, err)
	}
}
