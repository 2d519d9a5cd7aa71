package workers

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/camden-git/fieldsurvey/annotation"
	"github.com/camden-git/fieldsurvey/config"
	"github.com/camden-git/fieldsurvey/database"
	"github.com/camden-git/fieldsurvey/media"
	"github.com/camden-git/fieldsurvey/metrics"
	"github.com/camden-git/fieldsurvey/realtime"
	"github.com/camden-git/fieldsurvey/repository"
)

// TaskType constants
const (
	TaskRender    = "render"
	TaskThumbnail = "thumbnail"
)

// ImageJob is one unit of background work on an uploaded image. Render jobs
// carry the annotated image and its fingerprint; thumbnail jobs only need
// the stored path.
type ImageJob struct {
	TaskType    string
	UserID      uint
	SurveyID    uint
	ImageID     string
	RelPath     string
	Image       annotation.AnnotatedImage
	Fingerprint string
}

func (j ImageJob) pendingKey() string {
	return fmt.Sprintf("%s:%s:%s", j.ImageID, j.TaskType, j.Fingerprint)
}

type ImageProcessor struct {
	JobQueue  chan ImageJob
	Config    config.Config
	DB        *sql.DB
	Images    repository.ImageRepositoryInterface
	Processor *media.Processor
	Events    realtime.Broadcaster
	Metrics   *metrics.Metrics
	Wg        sync.WaitGroup
	StopChan  chan struct{}
	Pending   map[string]bool
	Mutex     sync.Mutex
	stopOnce  sync.Once
}

// Deps are the collaborators of an ImageProcessor. Events and Metrics may
// be nil.
type Deps struct {
	DB        *sql.DB
	Images    repository.ImageRepositoryInterface
	Processor *media.Processor
	Events    realtime.Broadcaster
	Metrics   *metrics.Metrics
}

func NewImageProcessor(cfg config.Config, deps Deps, queueSize, numWorkers int) *ImageProcessor {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	proc := &ImageProcessor{
		JobQueue:  make(chan ImageJob, queueSize),
		Config:    cfg,
		DB:        deps.DB,
		Images:    deps.Images,
		Processor: deps.Processor,
		Events:    deps.Events,
		Metrics:   deps.Metrics,
		StopChan:  make(chan struct{}),
		Pending:   make(map[string]bool),
	}
	proc.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go proc.worker(i)
	}
	log.Printf("workers: Started %d image processing worker(s) with queue size %d", numWorkers, queueSize)
	return proc
}

func (ip *ImageProcessor) worker(id int) {
	defer ip.Wg.Done()

	log.Printf("workers: Image worker %d started", id)
	for {
		select {
		case job, ok := <-ip.JobQueue:
			if !ok {
				log.Printf("workers: Image worker %d stopping: Job queue closed", id)
				return
			}
			ip.Metrics.SetQueueDepth(len(ip.JobQueue))
			log.Printf("workers: Worker %d received job type '%s' for image %s", id, job.TaskType, job.ImageID)

			switch job.TaskType {
			case TaskRender:
				ip.processRenderTask(job)
			case TaskThumbnail:
				ip.processThumbnailTask(job)
			default:
				log.Printf("workers: Worker %d: ERROR unknown task type '%s' for %s", id, job.TaskType, job.ImageID)
			}

			ip.Mutex.Lock()
			delete(ip.Pending, job.pendingKey())
			ip.Mutex.Unlock()

		case <-ip.StopChan:
			log.Printf("workers: Image worker %d stopping: Stop signal received", id)
			return
		}
	}
}

// QueueJob queues a task unless the same task is already pending.
func (ip *ImageProcessor) QueueJob(job ImageJob) bool {
	pendingKey := job.pendingKey()

	ip.Mutex.Lock()
	if ip.Pending[pendingKey] {
		ip.Mutex.Unlock()
		return false
	}
	ip.Pending[pendingKey] = true
	ip.Mutex.Unlock()

	select {
	case ip.JobQueue <- job:
		ip.Metrics.SetQueueDepth(len(ip.JobQueue))
		log.Printf("workers: Queued task '%s' for image %s", job.TaskType, job.ImageID)
		return true
	default:
		log.Printf("workers: WARNING: Image job queue full. Failed to queue task '%s' for image %s", job.TaskType, job.ImageID)
		ip.Mutex.Lock()
		delete(ip.Pending, pendingKey)
		ip.Mutex.Unlock()
		return false
	}
}

// QueueRender schedules a render of img unless the cache already holds one
// for the same annotations, or one is pending. It reports whether a job
// was queued.
func (ip *ImageProcessor) QueueRender(userID, surveyID uint, img annotation.AnnotatedImage) (bool, error) {
	fingerprint := media.Fingerprint(img)

	info, err := database.GetRenderInfo(ip.DB, img.ID)
	switch {
	case err == nil:
		if info.Fingerprint == fingerprint && info.Status != database.StatusFailed {
			if info.Status == database.StatusDone {
				ip.Metrics.RenderCached()
			}
			return false, nil
		}
	case !errors.Is(err, sql.ErrNoRows):
		return false, err
	}

	if err := database.MarkRenderPending(ip.DB, img.ID, fingerprint); err != nil {
		return false, err
	}
	queued := ip.QueueJob(ImageJob{
		TaskType:    TaskRender,
		UserID:      userID,
		SurveyID:    surveyID,
		ImageID:     img.ID,
		Image:       img,
		Fingerprint: fingerprint,
	})
	if !queued {
		// leave no pending row behind for a job that will never run
		_ = database.SetRenderResult(ip.DB, img.ID, fingerprint, nil, nil, nil, errors.New("render queue full"))
	}
	return queued, nil
}

// QueueThumbnail schedules thumbnail generation for a stored upload.
func (ip *ImageProcessor) QueueThumbnail(imageID, relPath string) bool {
	return ip.QueueJob(ImageJob{TaskType: TaskThumbnail, ImageID: imageID, RelPath: relPath})
}

func (ip *ImageProcessor) Stop() {
	ip.stopOnce.Do(func() {
		log.Println("workers: Stopping image processor workers...")
		close(ip.StopChan)
		ip.Wg.Wait()
		log.Println("workers: All image processor workers stopped")
	})
}

func (ip *ImageProcessor) broadcast(event realtime.Event) {
	if ip.Events != nil {
		ip.Events.Broadcast(event)
	}
}
