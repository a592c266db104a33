package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/just-being-aryan/task-manager-app/internal/domain/errors"
	"github.com/just-being-aryan/task-manager-app/internal/domain/models"
	"github.com/just-being-aryan/task-manager-app/internal/metrics"
	"github.com/just-being-aryan/task-manager-app/internal/tasks"
)

func bindJSON(ctx *gin.Context, dst any) bool {
	if err := ctx.ShouldBindJSON(dst); err != nil {
		abort(ctx, fmt.Errorf("%w: %w", errors.ErrBadRequest, err))
		return false
	}
	return true
}

func (api *TaskAPI) register(ctx *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(ctx, &req) {
		return
	}

	user, err := api.auth.Register(ctx.Request.Context(), req)
	if err != nil {
		abort(ctx, err)
		return
	}
	token, _, err := api.auth.Issue(user)
	if err != nil {
		abort(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"success": true, "token": token, "user": user})
}

func (api *TaskAPI) login(ctx *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(ctx, &req) {
		return
	}
	if err := models.Validate(req); err != nil {
		abort(ctx, err)
		return
	}

	token, user, err := api.auth.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		abort(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "token": token, "user": user})
}

func (api *TaskAPI) logout(ctx *gin.Context) {
	if err := api.auth.Revoke(ctx.Request.Context(), ctx.GetString(ctxToken)); err != nil {
		abort(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

func (api *TaskAPI) me(ctx *gin.Context) {
	user, err := api.auth.User(ctx.Request.Context(), ctx.GetString(ctxUserID))
	if err != nil {
		abort(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (api *TaskAPI) listTasks(ctx *gin.Context) {
	list, err := api.tasks.ListByOwner(ctx.Request.Context(), ctx.GetString(ctxUserID))
	if err != nil {
		abort(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "tasks": list})
}

func (api *TaskAPI) createTask(ctx *gin.Context) {
	var req models.CreateTaskRequest
	if !bindJSON(ctx, &req) {
		return
	}

	task, err := api.tasks.Create(ctx.Request.Context(), ctx.GetString(ctxUserID), tasks.Input{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
	})
	if err != nil {
		abort(ctx, err)
		return
	}

	metrics.TaskMutationsTotal.WithLabelValues("create").Inc()
	ctx.JSON(http.StatusCreated, gin.H{"success": true, "task": task})
}

func (api *TaskAPI) updateTask(ctx *gin.Context) {
	var req models.UpdateTaskRequest
	if !bindJSON(ctx, &req) {
		return
	}

	task, err := api.tasks.Update(ctx.Request.Context(), ctx.GetString(ctxUserID), ctx.Param("id"), tasks.Input{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		IsComplete:  bool(req.IsComplete),
	})
	if err != nil {
		abort(ctx, err)
		return
	}

	metrics.TaskMutationsTotal.WithLabelValues("update").Inc()
	ctx.JSON(http.StatusOK, gin.H{"success": true, "task": task})
}

func (api *TaskAPI) deleteTask(ctx *gin.Context) {
	if err := api.tasks.Delete(ctx.Request.Context(), ctx.GetString(ctxUserID), ctx.Param("id")); err != nil {
		abort(ctx, err)
		return
	}

	metrics.TaskMutationsTotal.WithLabelValues("delete").Inc()
	ctx.JSON(http.StatusOK, gin.H{"success": true})
}
