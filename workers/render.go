package workers

import (
	"fmt"
	"log"
	"time"

	"github.com/camden-git/fieldsurvey/database"
	"github.com/camden-git/fieldsurvey/realtime"
)

// processRenderTask draws the annotations of one image over its upload and
// records the result in the render cache.
func (ip *ImageProcessor) processRenderTask(job ImageJob) {
	start := time.Now()

	if err := database.MarkRenderProcessing(ip.DB, job.ImageID, job.Fingerprint); err != nil {
		log.Printf("workers: ERROR marking render processing for %s: %v. Skipping job.", job.ImageID, err)
		return
	}

	var taskErr error
	var renderPath *string
	var width, height *int

	rel, err := ip.sourcePath(job)
	if err != nil {
		taskErr = err
	} else if base, openErr := ip.Processor.Open(rel); openErr != nil {
		taskErr = fmt.Errorf("failed to open upload: %w", openErr)
	} else {
		savedPath, size, renderErr := ip.Processor.RenderAnnotated(base, job.Image)
		if renderErr != nil {
			taskErr = fmt.Errorf("render failed: %w", renderErr)
		} else {
			renderPath = &savedPath
			width, height = &size.Width, &size.Height
		}
	}
	ip.Metrics.RenderFinished(time.Since(start), taskErr)

	if dbErr := database.SetRenderResult(ip.DB, job.ImageID, job.Fingerprint, renderPath, width, height, taskErr); dbErr != nil {
		log.Printf("workers: ERROR updating render DB result for %s: %v", job.ImageID, dbErr)
	}

	event := realtime.Event{
		Type:     realtime.EventRenderCompleted,
		UserID:   job.UserID,
		SurveyID: job.SurveyID,
		ImageID:  job.ImageID,
		Status:   database.StatusDone,
	}
	if taskErr != nil {
		log.Printf("workers: ERROR rendering %s: %v", job.ImageID, taskErr)
		event.Type = realtime.EventRenderFailed
		event.Status = database.StatusFailed
		event.Error = taskErr.Error()
	} else {
		log.Printf("workers: Rendered %s in %s", job.ImageID, time.Since(start).Round(time.Millisecond))
	}
	ip.broadcast(event)
}

// sourcePath finds the stored upload behind the image URL. Only uploads of
// the job's user are rendered.
func (ip *ImageProcessor) sourcePath(job ImageJob) (string, error) {
	rec, err := ip.Images.GetByURL(job.Image.URL)
	if err != nil {
		return "", fmt.Errorf("no upload for %s: %w", job.Image.URL, err)
	}
	if rec.UserID != job.UserID {
		return "", fmt.Errorf("upload %s does not belong to user %d", rec.ID, job.UserID)
	}
	return rec.StoragePath, nil
}
