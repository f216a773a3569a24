package services

import (
	"fmt"

	"hostpilot-server/models"
	"hostpilot-server/storage"
)

// reconcile lands the extracted facts in the reservation graph: property,
// reservation, conversation, fees, and the inbound message itself.
func (p *EmailParser) reconcile(organizationID uint, in *inboundEmail) (*models.Message, error) {
	property, err := p.resolveProperty(organizationID, in)
	if err != nil {
		return nil, err
	}

	reservation, err := p.resolveReservation(organizationID, property, in)
	if err != nil {
		return nil, err
	}

	conversation, err := p.store.GetOrCreateConversation(reservation)
	if err != nil {
		return nil, err
	}
	if in.ThreadID != "" && conversation.ThreadID != in.ThreadID {
		storage.DB.Model(&models.Conversation{}).Where("id = ?", conversation.ID).
			Update("thread_id", in.ThreadID)
		conversation.ThreadID = in.ThreadID
	}

	switch in.Intent {
	case IntentNewReservation:
		if err := p.replaceFees(reservation, in); err != nil {
			return nil, err
		}
	case IntentReservationCanceled:
		if err := p.cancelReservation(reservation); err != nil {
			return nil, err
		}
	}

	if in.Body == "" {
		return nil, nil
	}

	message := &models.Message{
		Type:           models.MessageEmail,
		Outgoing:       in.OutgoingEcho,
		Text:           in.Body,
		Subject:        in.Subject,
		Sender:         in.GuestEmail,
		DeliveryStatus: models.DeliveryDelivered,
	}
	if in.MessageID != "" {
		messageID := in.MessageID
		message.ExternalEmailID = &messageID
	}
	if in.Date != nil {
		message.DateDelivered = in.Date
	} else {
		now := p.clock()
		message.DateDelivered = &now
	}

	if _, err := p.store.AppendMessage(conversation, message); err != nil {
		return nil, err
	}
	storage.DB.Model(&models.Conversation{}).Where("id = ?", conversation.ID).
		Update("unread", true)

	return message, nil
}

// resolveProperty tries the listing index, then calendar URLs, then the
// conversation thread. Anything but a unique resolution is ambiguous.
func (p *EmailParser) resolveProperty(organizationID uint, in *inboundEmail) (*models.Property, error) {
	if in.ListingID != "" {
		ids, err := p.propertyIDsByListing(organizationID, in.ListingID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			ids, err = p.propertyIDsByCalendar(organizationID, in.ListingID)
			if err != nil {
				return nil, err
			}
		}
		if len(ids) == 1 {
			return p.loadProperty(ids[0])
		}
		if len(ids) > 1 {
			return nil, fmt.Errorf("%w: listing %s matches %d properties", ErrAmbiguousProperty, in.ListingID, len(ids))
		}
	}

	if in.ThreadID != "" {
		ids, err := p.propertyIDsByThread(organizationID, in.ThreadID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 1 {
			return p.loadProperty(ids[0])
		}
	}

	return nil, ErrAmbiguousProperty
}

func (p *EmailParser) propertyIDsByListing(organizationID uint, listingID string) ([]uint, error) {
	var ids []uint
	err := storage.DB.Model(&models.ExternalListing{}).
		Distinct().
		Where("listing_id = ?", listingID).
		Where("property_id IN (?)", storage.DB.Model(&models.Property{}).Select("id").
			Where("organization_id = ?", organizationID)).
		Pluck("property_id", &ids).Error
	return ids, err
}

func (p *EmailParser) propertyIDsByCalendar(organizationID uint, listingID string) ([]uint, error) {
	var ids []uint
	err := storage.DB.Model(&models.ExternalCalendar{}).
		Distinct().
		Where("url LIKE ?", "%"+listingID+"%").
		Where("property_id IN (?)", storage.DB.Model(&models.Property{}).Select("id").
			Where("organization_id = ?", organizationID)).
		Pluck("property_id", &ids).Error
	return ids, err
}

func (p *EmailParser) propertyIDsByThread(organizationID uint, threadID string) ([]uint, error) {
	var reservationIDs []uint
	err := storage.DB.Model(&models.Conversation{}).
		Where("organization_id = ? AND thread_id = ?", organizationID, threadID).
		Pluck("reservation_id", &reservationIDs).Error
	if err != nil || len(reservationIDs) == 0 {
		return nil, err
	}
	var ids []uint
	err = storage.DB.Model(&models.Reservation{}).
		Distinct().
		Where("id IN ?", reservationIDs).
		Pluck("property_id", &ids).Error
	return ids, err
}

func (p *EmailParser) loadProperty(id uint) (*models.Property, error) {
	var property models.Property
	if err := storage.DB.First(&property, id).Error; err != nil {
		return nil, err
	}
	return &property, nil
}

// resolveReservation matches by inquiry facts, then external id, then
// confirmation code; otherwise it creates the reservation from the
// extracted facts.
func (p *EmailParser) resolveReservation(organizationID uint, property *models.Property, in *inboundEmail) (*models.Reservation, error) {
	var reservation models.Reservation

	if in.StartDate != nil && in.EndDate != nil && in.GuestEmail != "" {
		err := storage.DB.
			Where("organization_id = ? AND property_id = ? AND status = ? AND source = ?",
				organizationID, property.ID, models.ReservationInquiry, in.Source).
			Where("date(start_date) = ? AND date(end_date) = ?",
				in.StartDate.Format("2006-01-02"), in.EndDate.Format("2006-01-02")).
			Where("guest_id IN (?)", storage.DB.Model(&models.User{}).Select("id").
				Where("email = ?", in.GuestEmail)).
			First(&reservation).Error
		if err == nil {
			return p.updateMatched(&reservation, in)
		}
	}

	if in.ConfirmationCode != "" {
		err := storage.DB.
			Where("organization_id = ? AND external_id = ?", organizationID, in.ConfirmationCode).
			First(&reservation).Error
		if err == nil {
			return p.updateMatched(&reservation, in)
		}
		err = storage.DB.
			Where("organization_id = ? AND confirmation_code = ?", organizationID, in.ConfirmationCode).
			First(&reservation).Error
		if err == nil {
			return p.updateMatched(&reservation, in)
		}
	}

	return p.createReservation(organizationID, property, in)
}

func (p *EmailParser) createReservation(organizationID uint, property *models.Property, in *inboundEmail) (*models.Reservation, error) {
	guest, err := p.findOrCreateGuest(organizationID, in)
	if err != nil {
		return nil, err
	}

	status := models.ReservationAccepted
	switch in.Intent {
	case IntentReservationRequest:
		status = models.ReservationRequest
	case IntentNewInquiry:
		status = models.ReservationInquiry
	}

	reservation := models.Reservation{
		OrganizationID:   organizationID,
		PropertyID:       property.ID,
		GuestID:          guest.ID,
		Status:           status,
		Source:           models.SourceAirbnb, // source quirk: channel mail defaults to airbnb
		ConfirmationCode: in.ConfirmationCode,
		Adults:           in.Adults,
		Children:         in.Children,
		Infants:          in.Infants,
		BaseTotal:        in.BaseTotal,
		Price:            in.Total,
		Currency:         property.Currency,
	}
	if in.StartDate != nil {
		reservation.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		reservation.EndDate = *in.EndDate
	}
	if err := storage.DB.Create(&reservation).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

// updateMatched fills in facts the matched reservation is missing and
// overwrites the ones the channel is authoritative for when they differ.
func (p *EmailParser) updateMatched(reservation *models.Reservation, in *inboundEmail) (*models.Reservation, error) {
	updates := map[string]interface{}{}
	if in.ConfirmationCode != "" && reservation.ConfirmationCode != in.ConfirmationCode {
		updates["confirmation_code"] = in.ConfirmationCode
		reservation.ConfirmationCode = in.ConfirmationCode
	}
	if in.Adults != 0 && reservation.Adults != in.Adults {
		updates["adults"] = in.Adults
		reservation.Adults = in.Adults
	}
	if in.Children != 0 && reservation.Children != in.Children {
		updates["children"] = in.Children
		reservation.Children = in.Children
	}
	if in.Infants != 0 && reservation.Infants != in.Infants {
		updates["infants"] = in.Infants
		reservation.Infants = in.Infants
	}
	if in.BaseTotal != 0 && reservation.BaseTotal != in.BaseTotal {
		updates["base_total"] = in.BaseTotal
		reservation.BaseTotal = in.BaseTotal
	}
	if in.Total != 0 && reservation.Price != in.Total {
		updates["price"] = in.Total
		reservation.Price = in.Total
	}
	if len(updates) > 0 {
		if err := storage.DB.Model(&models.Reservation{}).Where("id = ?", reservation.ID).
			Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	// Guest gaps fill in; existing values stay.
	if reservation.GuestID != 0 && (in.GuestAvatar != "" || in.GuestLastName != "") {
		var guest models.User
		if err := storage.DB.First(&guest, reservation.GuestID).Error; err == nil {
			guestUpdates := map[string]interface{}{}
			if guest.AvatarURL == "" && in.GuestAvatar != "" {
				guestUpdates["avatar_url"] = in.GuestAvatar
			}
			if guest.LastName == "" && in.GuestLastName != "" {
				guestUpdates["last_name"] = in.GuestLastName
			}
			if len(guestUpdates) > 0 {
				storage.DB.Model(&models.User{}).Where("id = ?", guest.ID).Updates(guestUpdates)
			}
		}
	}
	return reservation, nil
}

func (p *EmailParser) findOrCreateGuest(organizationID uint, in *inboundEmail) (*models.User, error) {
	var guest models.User
	if in.GuestEmail != "" {
		if err := storage.DB.Where("email = ?", in.GuestEmail).First(&guest).Error; err == nil {
			return &guest, nil
		}
	}
	if in.GuestExternalID != "" {
		if err := storage.DB.Where("external_id = ?", in.GuestExternalID).First(&guest).Error; err == nil {
			return &guest, nil
		}
	}
	guest = models.User{
		OrganizationID: &organizationID,
		FirstName:      in.GuestFirstName,
		LastName:       in.GuestLastName,
		Email:          in.GuestEmail,
		AvatarURL:      in.GuestAvatar,
		ExternalID:     in.GuestExternalID,
		Role:           "guest",
	}
	if err := storage.DB.Create(&guest).Error; err != nil {
		return nil, err
	}
	return &guest, nil
}

// replaceFees swaps the reservation's fee lines for the parsed ones.
func (p *EmailParser) replaceFees(reservation *models.Reservation, in *inboundEmail) error {
	err := storage.DB.Where("reservation_id = ?", reservation.ID).
		Delete(&models.ReservationFee{}).Error
	if err != nil {
		return err
	}
	for _, fee := range in.Fees {
		row := models.ReservationFee{
			ReservationID: reservation.ID,
			FeeType:       models.FeeTypeForName(fee.Name),
			Name:          fee.Name,
			Amount:        fee.Amount,
		}
		if err := storage.DB.Create(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

func (p *EmailParser) cancelReservation(reservation *models.Reservation) error {
	now := p.clock()
	err := storage.DB.Model(&models.Reservation{}).Where("id = ?", reservation.ID).
		Updates(map[string]interface{}{
			"status":         models.ReservationCancelled,
			"date_cancelled": now,
		}).Error
	if err != nil {
		return err
	}
	reservation.Status = models.ReservationCancelled
	reservation.DateCancelled = &now
	return RecomputePrice(reservation)
}

// RecomputePrice rebuilds price from base total plus fees. Security
// deposits are excluded; deposits are not revenue.
func RecomputePrice(reservation *models.Reservation) error {
	var fees []models.ReservationFee
	err := storage.DB.Where("reservation_id = ?", reservation.ID).Find(&fees).Error
	if err != nil {
		return err
	}
	price := reservation.BaseTotal
	for _, fee := range fees {
		if fee.FeeType == models.SecurityDeposit {
			continue
		}
		price += fee.Amount
	}
	reservation.Price = price
	return storage.DB.Model(&models.Reservation{}).Where("id = ?", reservation.ID).
		Update("price", price).Error
}
