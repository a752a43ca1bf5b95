package action

import (
	"fmt"

	"github.com/leapstack-labs/mfbot-download/internal/intent"
)

// Reply texts.
const (
	ReplyNoRuns       = "I couldn't find any runs matching that request :meow_dead:"
	ReplyFound        = "Ok, found the S3 URL of the artifact. Downloading now."
	ReplyGeneric      = "Sorry, I couldn't find what you were looking for :meow_dead:"
	ReplyHowToFailure = "Sorry, I couldn't explain how to download at the moment :meow_dead:"
	ReplyBusy         = "I'm busy with other downloads right now, please try again in a minute."
)

func notUnderstood() string {
	return "Sorry, I didn't understand that.\n" + intent.HowTo()
}

func accessDenied(location string) string {
	return fmt.Sprintf("Unable to download the object from S3 `%s` :meow_dead:", location)
}

func tooLarge(location string, maxBytes int64) string {
	return fmt.Sprintf("The object `%s` is too large to upload, the limit is %d MB :meow_dead:", location, maxBytes/(1<<20))
}

func uploading(filename string) string {
	return "Downloaded artifact, uploading " + filename
}
