package workers

import (
	"log"
)

func (ip *ImageProcessor) processThumbnailTask(job ImageJob) {
	img, err := ip.Processor.Open(job.RelPath)
	if err != nil {
		log.Printf("workers: original %s not readable, skipping thumbnail generation: %v", job.RelPath, err)
		return
	}

	thumbPath, err := ip.Processor.GenerateThumbnail(img, job.RelPath, ip.Config.ThumbnailMaxSize)
	if err != nil {
		log.Printf("workers: ERROR generating thumbnail for %s: %v", job.RelPath, err)
		return
	}

	if err := ip.Images.UpdateThumbnail(job.ImageID, &thumbPath); err != nil {
		log.Printf("workers: ERROR updating thumbnail record for %s after generation: %v", job.ImageID, err)
		return
	}
	log.Printf("workers: Generated thumbnail for image %s", job.ImageID)
}
