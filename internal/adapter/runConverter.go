package adapter

import (
	"errors"

	"github.com/akolanti/docqa/internal/api"
	"github.com/akolanti/docqa/internal/domain/commonModels"
	"github.com/akolanti/docqa/internal/domain/runModel"
)

func ToRunResponse(answers []string) api.RunResponse {
	if answers == nil {
		answers = []string{}
	}
	return api.RunResponse{Answers: answers}
}

func ToRunStatusResponse(run runModel.Run) api.RunStatusResponse {
	var errorPtr *api.ErrorBody
	if run.Error != nil {
		errorPtr = &api.ErrorBody{
			Code:    run.Error.Code,
			Message: run.Error.Message,
			Stage:   string(run.Error.Stage),
			RunId:   run.Id,
		}
	}

	var stageMillis map[string]int64
	if len(run.StageMillis) > 0 {
		stageMillis = make(map[string]int64, len(run.StageMillis))
		for stage, ms := range run.StageMillis {
			stageMillis[string(stage)] = ms
		}
	}

	res := api.RunStatusResponse{
		Id:            run.Id,
		Stage:         string(run.Stage),
		DocumentURL:   run.DocumentURL,
		DocumentKind:  run.DocumentKind,
		QuestionCount: run.QuestionCount,
		PassageCount:  run.PassageCount,
		AnswerCount:   run.AnswerCount,
		FallbackCount: run.FallbackCount,
		StageMillis:   stageMillis,
		Error:         errorPtr,
		StartTime:     run.CreatedTime,
	}
	if !run.EndTime.IsZero() {
		end := run.EndTime
		res.EndTime = &end
	}
	return res
}

// ToErrorResponse describes a failed run. The stage is taken from the error when it carries one.
func ToErrorResponse(err error, runId string) api.ErrorResponse {
	body := api.ErrorBody{
		Code:    commonModels.ErrorCode(err),
		Message: err.Error(),
		RunId:   runId,
	}
	var staged commonModels.StagedError
	if errors.As(err, &staged) {
		body.Stage = string(staged.Stage())
	}
	return api.ErrorResponse{Error: body}
}

func BadRequest(code string, message string, runId string) api.ErrorResponse {
	return api.ErrorResponse{Error: api.ErrorBody{Code: code, Message: message, RunId: runId}}
}
