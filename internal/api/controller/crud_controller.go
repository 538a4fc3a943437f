package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CollectionService is a resource kept and replaced as a whole list.
type CollectionService[T any] interface {
	All() ([]T, error)
	ReplaceAll(items []T) ([]T, error)
}

// CollectionValidator validates one item before a replace.
type CollectionValidator[T any] interface {
	Validate(item T) error
}

// CollectionController provides generic list/replace handlers.
type CollectionController[T any] struct {
	Service   CollectionService[T]
	Validator CollectionValidator[T]
	Log       *logrus.Entry
	Name      string
}

// GetAll handles GET requests returning the whole collection as a bare array.
func (cc *CollectionController[T]) GetAll(c *gin.Context) {
	cc.Log.Debugf("GET %s handler called", cc.Name)
	items, err := cc.Service.All()
	if err != nil {
		respondError(c, cc.Log, "read "+cc.Name, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// ReplaceAll handles POST requests replacing the collection.
func (cc *CollectionController[T]) ReplaceAll(c *gin.Context) {
	cc.Log.Debugf("POST %s handler called", cc.Name)
	var items []T
	if err := c.ShouldBindJSON(&items); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if cc.Validator != nil {
		for _, item := range items {
			if err := cc.Validator.Validate(item); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
	}
	stored, err := cc.Service.ReplaceAll(items)
	if err != nil {
		respondError(c, cc.Log, "update "+cc.Name, err)
		return
	}
	c.JSON(http.StatusOK, stored)
}
