package client_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/mengeric/extractjob-go/client"
	"github.com/mengeric/extractjob-go/job"
	"github.com/mengeric/extractjob-go/mocks"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/mock/gomock"
)

func TestWait(t *testing.T) {
	Convey("Wait polls until the job is terminal", t, func() {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		api := mocks.NewMockAPI(ctrl)
		gomock.InOrder(
			api.EXPECT().Status(gomock.Any(), "j1").Return(job.Job{ID: "j1", Status: job.StatusQueued}, nil),
			api.EXPECT().Status(gomock.Any(), "j1").Return(job.Job{ID: "j1", Status: job.StatusRunning}, nil),
			api.EXPECT().Status(gomock.Any(), "j1").Return(job.Job{ID: "j1", Status: job.StatusFailed, ErrorMessage: "boom"}, nil),
		)
		j, err := client.Wait(context.Background(), api, "j1", time.Millisecond)
		So(err, ShouldBeNil)
		So(j.Status, ShouldEqual, job.StatusFailed)
		So(j.ErrorMessage, ShouldEqual, "boom")
	})

	Convey("Wait returns status errors immediately", t, func() {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		api := mocks.NewMockAPI(ctrl)
		api.EXPECT().Status(gomock.Any(), "j2").Return(job.Job{}, &client.StatusError{Code: http.StatusNotFound})
		_, err := client.Wait(context.Background(), api, "j2", time.Millisecond)
		So(client.IsNotFound(err), ShouldBeTrue)
	})
}

func TestSubmitWithRetry(t *testing.T) {
	Convey("capacity rejections are retried, other errors are not", t, func() {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()
		api := mocks.NewMockAPI(ctrl)
		full := &client.StatusError{Code: http.StatusTooManyRequests, Body: client.ErrorBody{RetryAfter: 300}}

		gomock.InOrder(
			api.EXPECT().Submit(gomock.Any(), "reactions", gomock.Any()).Return(client.SubmitResponse{}, full),
			api.EXPECT().Submit(gomock.Any(), "reactions", gomock.Any()).Return(client.SubmitResponse{JobID: "r1"}, nil),
		)
		resp, err := client.SubmitWithRetry(context.Background(), api, "reactions", client.SubmitRequest{}, 3, time.Millisecond)
		So(err, ShouldBeNil)
		So(resp.JobID, ShouldEqual, "r1")

		boom := errors.New("connection refused")
		api.EXPECT().Submit(gomock.Any(), "comments", gomock.Any()).Return(client.SubmitResponse{}, boom)
		_, err = client.SubmitWithRetry(context.Background(), api, "comments", client.SubmitRequest{}, 3, time.Millisecond)
		So(err, ShouldEqual, boom)

		api.EXPECT().Submit(gomock.Any(), "comments", gomock.Any()).Return(client.SubmitResponse{}, full).Times(2)
		_, err = client.SubmitWithRetry(context.Background(), api, "comments", client.SubmitRequest{}, 2, time.Millisecond)
		So(client.IsCapacity(err), ShouldBeTrue)
	})
}
