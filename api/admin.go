/*
Copyright 2025 Panelku Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	model2 "github.com/panelku/panelku/api/model"
	"github.com/panelku/panelku/model"
)

func (a Api) AdminListOrders(c *gin.Context) {
	orders, err := a.service.AdminListOrders(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "orders": orders})
}

func (a Api) AdminUpdateStatus(c *gin.Context) {
	orderID, passed := c.Params.Get("orderId")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "orderId is required. pass id in the route /:orderId/status"})
		return
	}

	var req model2.AdminStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if err := req.ValidateAdminStatus(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	order, err := a.service.AdminReviewOrder(c.Request.Context(), orderID, model.Status(req.Status), req.AdminNote)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "order": order})
}
